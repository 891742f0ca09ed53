package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"Roll", "Name"},
		Rows: []map[string]string{
			{"Roll": "CS-01", "Name": "Alice"},
			{"Roll": "CS-02", "Name": "Bob"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Roll,Name\nCS-01,Alice\nCS-02,Bob\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})

	assert.Error(t, err)
}

func TestCSVStreamer(t *testing.T) {
	var buf bytes.Buffer
	streamer := NewCSVStreamer(&buf)

	require.NoError(t, streamer.WriteHeader([]string{"Roll", "Name"}))
	require.NoError(t, streamer.WriteRow([]string{"CS-01", "Alice"}))
	require.NoError(t, streamer.Flush())

	assert.Equal(t, "Roll,Name\nCS-01,Alice\n", buf.String())
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()

	out, err := exporter.Render(Dataset{
		Headers: []string{"Roll", "Name"},
		Rows: []map[string]string{
			{"Roll": "CS-01", "Name": "Alice"},
		},
	}, "Attendance CS101")

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
