package emulator

import (
	"os"
	"testing"

	"github.com/kaelstrom/gvm64/asmbuild"
	"github.com/kaelstrom/gvm64/isa"
)

// BenchmarkExecuteRC4 measures Execute's throughput running the full
// key-scheduling and keystream-generation fixture.
func BenchmarkExecuteRC4(b *testing.B) {
	source, err := os.ReadFile("../testdata/rc4.gvm")
	if err != nil {
		b.Fatal(err)
	}

	builder := asmbuild.New()
	if err := builder.CompileSource(string(source)); err != nil {
		b.Fatal(err)
	}
	if err := builder.Finalize(); err != nil {
		b.Fatal(err)
	}
	bytecode, err := builder.Dump()
	if err != nil {
		b.Fatal(err)
	}

	key := []byte("benchmarkkey")
	keyOff := builder.Labels["key"]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := New()
		for j, byt := range bytecode {
			_ = e.Dram.WriteU8(j, byt)
		}
		e.Regs.Write(isa.R1, uint64(len(key)))
		e.Regs.Write(isa.R2, 256)
		for j, kb := range key {
			_ = e.Dram.WriteU8(int(keyOff)+j, kb)
		}
		if err := e.Execute(); err != nil {
			b.Fatal(err)
		}
	}
}
