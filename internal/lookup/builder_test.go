package lookup

import (
	"FlowTagger/internal/model"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lookupCSV = `dstport,protocol,tag
25,tcp,sv_P1
68,udp,sv_P2
23,tcp,sv_P1
31,udp,SV_P3
443,tcp,sv_P2
22,tcp,sv_P4
3389,tcp,sv_P5
0,icmp,sv_P5
110,tcp,email
993,tcp,email
143,tcp,email
`

func TestLoad(t *testing.T) {
	ix, stats, err := Load(strings.NewReader(lookupCSV))
	require.NoError(t, err)

	assert.Equal(t, 11, ix.Len())
	assert.Equal(t, Stats{Rows: 11, Loaded: 11}, stats)

	tag, ok := ix.Lookup(25, "tcp")
	assert.True(t, ok)
	assert.Equal(t, "sv_P1", tag)

	tag, ok = ix.Lookup(0, "icmp")
	assert.True(t, ok)
	assert.Equal(t, "sv_P5", tag)

	_, ok = ix.Lookup(25, "udp")
	assert.False(t, ok)
}

func TestLoad_CaseInsensitiveProtocol(t *testing.T) {
	ix, _, err := Load(strings.NewReader("80,TCP,web\n"))
	require.NoError(t, err)

	for _, proto := range []string{"tcp", "TCP", "Tcp"} {
		tag, ok := ix.Lookup(80, proto)
		assert.True(t, ok, "protocol %q should match", proto)
		assert.Equal(t, "web", tag)
	}
}

func TestLoad_WithoutHeader(t *testing.T) {
	ix, stats, err := Load(strings.NewReader("80, tcp , web\n53,udp,dns\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 2, stats.Loaded)

	tag, ok := ix.Lookup(80, "tcp")
	assert.True(t, ok)
	assert.Equal(t, "web", tag)
}

func TestLoad_ByteOrderMark(t *testing.T) {
	ix, stats, err := Load(strings.NewReader("\ufeffdstport,protocol,tag\n80,tcp,web\n"))
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 1, Loaded: 1}, stats)
	tag, ok := ix.Lookup(80, "tcp")
	assert.True(t, ok)
	assert.Equal(t, "web", tag)

	ix, stats, err = Load(strings.NewReader("\ufeff443,tcp,tls\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Skipped)
	tag, ok = ix.Lookup(443, "tcp")
	assert.True(t, ok)
	assert.Equal(t, "tls", tag)
}

func TestLoad_SkipsInvalidRows(t *testing.T) {
	input := `dstport,protocol,tag
80,tcp,web
http,tcp,web
-1,tcp,neg
70000,tcp,big
53,,dns
53,udp,
53
80,tcp,web,extra
"unterminated,udp,x
`
	ix, stats, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 8, stats.Skipped)
}

func TestLoad_LastDuplicateWins(t *testing.T) {
	input := `dstport,protocol,tag
80,tcp,first
80,TCP,second
443,tcp,tls
80,tcp,third
`
	ix, stats, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	tag, ok := ix.Lookup(80, "tcp")
	require.True(t, ok)
	assert.Equal(t, "third", tag)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 2, stats.Overridden)
	assert.Equal(t, 4, stats.Loaded)
}

func TestLoad_Empty(t *testing.T) {
	ix, stats, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, Stats{}, stats)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("device not ready")
}

func TestLoad_UnreadableSource(t *testing.T) {
	_, _, err := Load(brokenReader{})
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	ix := Build([]model.LookupEntry{
		{DstPort: 443, Protocol: "TCP", Tag: "tls"},
		{DstPort: 53, Protocol: "udp", Tag: "dns"},
		{DstPort: 443, Protocol: "tcp", Tag: "https"},
	})

	assert.Equal(t, []model.LookupEntry{
		{DstPort: 53, Protocol: "udp", Tag: "dns"},
		{DstPort: 443, Protocol: "tcp", Tag: "https"},
	}, ix.Entries())
}

func TestParseRow(t *testing.T) {
	entry, err := ParseRow([]string{" 8080 ", "UDP", " alt-http "})
	require.NoError(t, err)
	assert.Equal(t, model.LookupEntry{DstPort: 8080, Protocol: "udp", Tag: "alt-http"}, entry)

	_, err = ParseRow([]string{"8080", "udp"})
	assert.ErrorIs(t, err, ErrInvalidRow)
	_, err = ParseRow([]string{"8080", "udp", "alt-http", "extra"})
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestNilIndex(t *testing.T) {
	var ix *Index
	_, ok := ix.Lookup(80, "tcp")
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Entries())
}
