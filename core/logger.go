package core

// Logger is implemented by the logging service.
// args may hold errors, map[string]interface{} extras and the acting learner.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
