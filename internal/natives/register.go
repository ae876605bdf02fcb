// Package natives wires the concrete native modules (db, socket,
// crypto, fmtutil) into a module.Registry. cmd/blade calls RegisterAll
// once before constructing the VM; every other package only ever sees
// these through the native-module ABI in internal/module, never by
// importing this package directly.
package natives

import (
	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/natives/cryptomod"
	"github.com/blade-lang/blade/internal/natives/dbmod"
	"github.com/blade-lang/blade/internal/natives/fmtmod"
	"github.com/blade-lang/blade/internal/natives/socketmod"
)

// RegisterAll installs every native module this repository ships
// against reg, keyed by the name scripts `import` them under.
func RegisterAll(reg *module.Registry) {
	reg.RegisterNative("db", dbmod.Factory)
	reg.RegisterNative("socket", socketmod.Factory)
	reg.RegisterNative("crypto", cryptomod.Factory)
	reg.RegisterNative("fmtutil", fmtmod.Factory)
}
