package sources

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJournalReader replays a fixed list of entries, then returns io.EOF.
type fakeJournalReader struct {
	entries [][]byte
	idx     int
}

func (r *fakeJournalReader) ReadEntry() ([]byte, error) {
	if r.idx >= len(r.entries) {
		return nil, io.EOF
	}
	e := r.entries[r.idx]
	r.idx++
	return e, nil
}

func (r *fakeJournalReader) Close() error { return nil }

func TestJournaldParsesMessageAndFields(t *testing.T) {
	reader := &fakeJournalReader{entries: [][]byte{
		[]byte(`{"MESSAGE":"service started","_SYSTEMD_UNIT":"hopperd.service","__REALTIME_TIMESTAMP":"1700000000000000"}`),
	}}
	fwd := &recordingSender{}
	src := NewJournald(reader, "journald", []Sender{fwd})

	require.NoError(t, src.Run())
	require.Len(t, fwd.snapshot(), 1)

	line := fwd.snapshot()[0].Log()
	assert.Equal(t, "service started", line.Value())
	assert.Equal(t, int64(1700000000), line.Timestamp())
	unit, ok := line.Fields().Get("_SYSTEMD_UNIT")
	require.True(t, ok)
	assert.Equal(t, "hopperd.service", unit)
}

func TestJournaldSkipsUnparseableEntries(t *testing.T) {
	reader := &fakeJournalReader{entries: [][]byte{
		[]byte(`not json`),
		[]byte(`{"MESSAGE":"ok"}`),
	}}
	fwd := &recordingSender{}
	src := NewJournald(reader, "journald", []Sender{fwd})

	require.NoError(t, src.Run())
	require.Len(t, fwd.snapshot(), 1)
	assert.Equal(t, "ok", fwd.snapshot()[0].Log().Value())
}
