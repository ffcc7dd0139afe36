// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalLifecycle(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminal(&buf)

	p.Loading("fitz", 2)
	p.Begin(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Advance()
		}()
	}
	wg.Wait()
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "Benchmarking")
	assert.Contains(t, out, "4/4")
	assert.Nil(t, p.bar)
	assert.Nil(t, p.spinner)
}

func TestTerminalDoneWithoutBegin(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminal(&buf)
	p.Loading("marker", 1)
	p.Done()
	p.Advance()
	assert.Nil(t, p.spinner)
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	r.Loading("x", 1)
	r.Begin(1)
	r.Advance()
	r.Done()
}
