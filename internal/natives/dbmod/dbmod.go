// Package dbmod is the `db` native module: a thin database/sql wrapper
// exposing a `Connection` native class. A driver-name string ("mysql",
// "postgres", "sqlite3", "sqlserver") dispatches to the matching
// blank-imported driver.
package dbmod

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/blade-lang/blade/internal/natives/nativeutil"
	"github.com/blade-lang/blade/internal/value"
)

var driverNames = map[string]string{
	"mysql":     "mysql",
	"postgres":  "postgres",
	"pg":        "postgres",
	"sqlite3":   "sqlite3",
	"sqlite":    "sqlite3",
	"mssql":     "mssql",
	"sqlserver": "mssql",
}

// Factory builds the `db` module's exported Values table: a single
// free function, db.open(driver, dsn), returning a Connection
// instance whose foreign field holds the live *sql.DB.
func Factory(vm value.NativeVM) (*value.Module, error) {
	connCls := connectionClass(vm)

	values := value.NewTable()
	values.Set(vm.NewString("Connection"), value.Obj(&connCls.Object))
	values.Set(vm.NewString("open"), nativeutil.NativeFunc(vm, "open", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 2 || !argv[0].IsString() || !argv[1].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "open() expects (driver, dsn) strings")
		}
		driverArg := strings.ToLower(argv[0].AsString().Chars)
		driver, ok := driverNames[driverArg]
		if !ok {
			return value.Nil, nv.RaiseError("ArgumentError", fmt.Sprintf("unsupported database driver '%s'", driverArg))
		}
		dsn := argv[1].AsString().Chars
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nativeutil.ErrResult(nv, connCls, err.Error()), nil
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nativeutil.ErrResult(nv, connCls, err.Error()), nil
		}
		handle := nativeutil.NewForeign(nv, "sql.DB", db, func(ptr interface{}) {
			ptr.(*sql.DB).Close()
		})
		return nativeutil.OkResult(nv, connCls, map[string]value.Value{
			"id":     nativeutil.NewID(nv),
			"driver": nv.NewString(driverArg),
			"_db":    handle,
		}), nil
	}))

	return &value.Module{Name: "db", Path: "db", Values: values}, nil
}

// dbOf extracts the live *sql.DB out of a Connection instance's
// foreign-wrapped "_db" property.
func dbOf(nv value.NativeVM, recv value.Value) (*sql.DB, error) {
	if !recv.IsInstance() {
		return nil, nv.RaiseError("TypeError", "expected a Connection instance")
	}
	inst := recv.AsInstance()
	raw, ok := inst.Properties.Get(nv.NewString("_db"))
	if !ok || !raw.Is(value.ObjForeign) {
		return nil, nv.RaiseError("RuntimeError", "connection is closed")
	}
	f := raw.AsForeign()
	db, ok := f.Ptr.(*sql.DB)
	if !ok || db == nil {
		return nil, nv.RaiseError("RuntimeError", "connection is closed")
	}
	return db, nil
}

func connectionClass(vm value.NativeVM) *value.Class {
	cb := nativeutil.NewClass(vm, "Connection")
	cb.Field("ok", value.True)
	cb.Field("error", value.Nil)
	cb.Method("query", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		recv := argv[0]
		if len(argv) < 2 || !argv[1].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "query() expects a SQL string")
		}
		db, err := dbOf(nv, recv)
		if err != nil {
			return value.Nil, err
		}
		args := sqlArgs(argv[2:])
		rows, qerr := db.Query(argv[1].AsString().Chars, args...)
		if qerr != nil {
			return resultError(nv, qerr.Error()), nil
		}
		defer rows.Close()
		return rowsToDicts(nv, rows)
	})
	cb.Method("exec", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		recv := argv[0]
		if len(argv) < 2 || !argv[1].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "exec() expects a SQL string")
		}
		db, err := dbOf(nv, recv)
		if err != nil {
			return value.Nil, err
		}
		args := sqlArgs(argv[2:])
		res, eerr := db.Exec(argv[1].AsString().Chars, args...)
		if eerr != nil {
			return resultError(nv, eerr.Error()), nil
		}
		affected, _ := res.RowsAffected()
		d := &value.Dict{Items: value.NewTable()}
		setDict(nv, d, "ok", value.True)
		setDict(nv, d, "rows_affected", value.Number(float64(affected)))
		nv.Track(&d.Object, 48)
		return value.Obj(&d.Object), nil
	})
	cb.Method("close", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		recv := argv[0]
		if !recv.IsInstance() {
			return value.False, nil
		}
		inst := recv.AsInstance()
		raw, ok := inst.Properties.Get(nv.NewString("_db"))
		if !ok || !raw.Is(value.ObjForeign) {
			return value.False, nil
		}
		f := raw.AsForeign()
		if db, ok := f.Ptr.(*sql.DB); ok && db != nil {
			db.Close()
			f.Ptr = nil
		}
		return value.True, nil
	})
	return cb.Build()
}

func sqlArgs(vals []value.Value) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		switch {
		case v.IsNumber():
			out[i] = v.AsNumber()
		case v.IsString():
			out[i] = v.AsString().Chars
		case v.IsBool():
			out[i] = v.AsBool()
		case v.IsNil():
			out[i] = nil
		default:
			out[i] = value.ToString(v)
		}
	}
	return out
}

func resultError(nv value.NativeVM, msg string) value.Value {
	d := &value.Dict{Items: value.NewTable()}
	setDict(nv, d, "ok", value.False)
	setDict(nv, d, "error", nv.NewString(msg))
	nv.Track(&d.Object, 32)
	return value.Obj(&d.Object)
}

func setDict(nv value.NativeVM, d *value.Dict, key string, v value.Value) {
	k := nv.NewString(key)
	if _, existed := d.Items.Get(k); !existed {
		d.Names = append(d.Names, k)
	}
	d.Items.Set(k, v)
}

// rowsToDicts materializes a *sql.Rows into the dict query() returns:
// {ok: true, rows: [...]}, where rows holds one dict per row (column
// name -> column value).
func rowsToDicts(nv value.NativeVM, rows *sql.Rows) (value.Value, error) {
	cols, err := rows.Columns()
	if err != nil {
		return resultError(nv, err.Error()), nil
	}
	list := &value.List{}
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return resultError(nv, err.Error()), nil
		}
		d := &value.Dict{Items: value.NewTable()}
		for i, col := range cols {
			setDict(nv, d, col, sqlValueToBlade(nv, raw[i]))
		}
		nv.Track(&d.Object, 32+len(cols)*16)
		list.Elems = append(list.Elems, value.Obj(&d.Object))
	}
	nv.Track(&list.Object, 16+len(list.Elems)*8)
	res := &value.Dict{Items: value.NewTable()}
	setDict(nv, res, "ok", value.True)
	setDict(nv, res, "rows", value.Obj(&list.Object))
	nv.Track(&res.Object, 32)
	return value.Obj(&res.Object), nil
}

func sqlValueToBlade(nv value.NativeVM, raw interface{}) value.Value {
	switch t := raw.(type) {
	case nil:
		return value.Nil
	case []byte:
		return nv.NewString(string(t))
	case string:
		return nv.NewString(t)
	case int64:
		return value.Number(float64(t))
	case float64:
		return value.Number(t)
	case bool:
		return value.Bool(t)
	default:
		return nv.NewString(fmt.Sprintf("%v", t))
	}
}
