package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")

	adminShutdown    = pq.ErrorCode("57P01")
	crashShutdown    = pq.ErrorCode("57P02")
	cannotConnectNow = pq.ErrorCode("57P03")
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// wrapDBErr annotates err with msg. A server that is going away becomes a core shutdown error.
func wrapDBErr(err error, msg string) error {
	switch pqCode(err) {
	case adminShutdown, crashShutdown, cannotConnectNow:
		return errors.Wrap(core.NewShutdownError(err.Error()), msg)
	}
	return errors.Wrap(err, msg)
}

// withTx runs fn in a transaction, committing when it returns nil and rolling back otherwise.
func withTx(ctx context.Context, db core.DB, fn func(tx core.DBTransactor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = wrapDBErr(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

// orderBy renders an ORDER BY clause from the allowed fields only.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		column, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: column, Ascending: ord.Ascending}.String())
	}
	clauses = append(clauses, fallback)
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []interface{}
}

// add appends cond, replacing each "?" with the next placeholder bound to arg.
func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func namedExec(ctx context.Context, db core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, db, query, arg)
}

// namedGet runs a named query expected to return a single row (UPDATE ... RETURNING).
func namedGet(ctx context.Context, db core.DBExecutor, dest interface{}, query string, arg interface{}) error {
	q, args, err := sqlx.BindNamed(sqlx.DOLLAR, query, arg)
	if err != nil {
		return err
	}
	return db.GetContext(ctx, dest, q, args...)
}

func utcTime(t null.Time) null.Time {
	if !t.Valid {
		return t
	}
	return null.TimeFrom(t.Time.UTC())
}
