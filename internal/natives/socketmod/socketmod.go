// Package socketmod is the `socket` native module: a gorilla/websocket
// wrapper exposing a `Socket` native class. recv() is a blocking
// native call the VM's single dispatch thread parks on, never
// preempted.
package socketmod

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blade-lang/blade/internal/natives/nativeutil"
	"github.com/blade-lang/blade/internal/value"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func Factory(vm value.NativeVM) (*value.Module, error) {
	sockCls := socketClass(vm)

	values := value.NewTable()
	values.Set(vm.NewString("Socket"), value.Obj(&sockCls.Object))
	values.Set(vm.NewString("dial"), nativeutil.NativeFunc(vm, "dial", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "dial() expects a url string")
		}
		conn, _, err := websocket.DefaultDialer.Dial(argv[0].AsString().Chars, nil)
		if err != nil {
			return nativeutil.ErrResult(nv, sockCls, err.Error()), nil
		}
		return openSocket(nv, sockCls, conn), nil
	}))
	values.Set(vm.NewString("listen"), nativeutil.NativeFunc(vm, "listen", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "listen() expects an address string")
		}
		conn, err := acceptOne(argv[0].AsString().Chars)
		if err != nil {
			return nativeutil.ErrResult(nv, sockCls, err.Error()), nil
		}
		return openSocket(nv, sockCls, conn), nil
	}))

	return &value.Module{Name: "socket", Path: "socket", Values: values}, nil
}

// acceptOne starts a one-shot HTTP server on addr, upgrades the first
// inbound request to a websocket connection, and returns it — the
// blocking part of `socket.listen`, parked on a channel until a
// client's upgrade succeeds or fails, or 60 seconds pass. Errors from
// the server's Serve loop are not reported.
func acceptOne(addr string) (*websocket.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	connCh := make(chan *websocket.Conn, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{}
	srv.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, uerr := upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			errCh <- uerr
			return
		}
		connCh <- c
	})
	go srv.Serve(ln)
	defer srv.Close()
	select {
	case c := <-connCh:
		return c, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(60 * time.Second):
		return nil, errTimeout{}
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "timed out waiting for a client connection" }

func openSocket(nv value.NativeVM, cls *value.Class, conn *websocket.Conn) value.Value {
	handle := nativeutil.NewForeign(nv, "websocket.Conn", conn, func(ptr interface{}) {
		ptr.(*websocket.Conn).Close()
	})
	return nativeutil.OkResult(nv, cls, map[string]value.Value{
		"id":     nativeutil.NewID(nv),
		"_conn":  handle,
		"closed": value.False,
	})
}

func connOf(nv value.NativeVM, recv value.Value) (*websocket.Conn, error) {
	if !recv.IsInstance() {
		return nil, nv.RaiseError("TypeError", "expected a Socket instance")
	}
	raw, ok := recv.AsInstance().Properties.Get(nv.NewString("_conn"))
	if !ok || !raw.Is(value.ObjForeign) {
		return nil, nv.RaiseError("RuntimeError", "socket is closed")
	}
	conn, ok := raw.AsForeign().Ptr.(*websocket.Conn)
	if !ok || conn == nil {
		return nil, nv.RaiseError("RuntimeError", "socket is closed")
	}
	return conn, nil
}

func socketClass(vm value.NativeVM) *value.Class {
	cb := nativeutil.NewClass(vm, "Socket")
	cb.Field("ok", value.True)
	cb.Field("error", value.Nil)
	cb.Field("closed", value.False)
	cb.Method("send", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		conn, err := connOf(nv, argv[0])
		if err != nil {
			return value.Nil, err
		}
		if len(argv) != 2 || !argv[1].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "send() expects a string message")
		}
		if werr := conn.WriteMessage(websocket.TextMessage, []byte(argv[1].AsString().Chars)); werr != nil {
			return value.Nil, nv.RaiseError("RuntimeError", werr.Error())
		}
		return value.True, nil
	})
	cb.Method("recv", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		conn, err := connOf(nv, argv[0])
		if err != nil {
			return value.Nil, err
		}
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return value.Nil, nv.RaiseError("RuntimeError", rerr.Error())
		}
		return nv.NewString(string(data)), nil
	})
	cb.Method("close", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		recv := argv[0]
		if !recv.IsInstance() {
			return value.False, nil
		}
		inst := recv.AsInstance()
		raw, ok := inst.Properties.Get(nv.NewString("_conn"))
		if ok && raw.Is(value.ObjForeign) {
			f := raw.AsForeign()
			if conn, ok := f.Ptr.(*websocket.Conn); ok && conn != nil {
				conn.Close()
				f.Ptr = nil
			}
		}
		inst.Properties.Set(nv.NewString("closed"), value.True)
		return value.True, nil
	})
	return cb.Build()
}
