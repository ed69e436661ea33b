package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agendaDataset() Dataset {
	return Dataset{
		Title:    "Agenda",
		Subtitle: "2025-03-10",
		Columns: []Column{
			{Key: "start", Label: "Start", Width: 1},
			{Key: "client", Label: "Client", Width: 2},
			{Key: "status"},
		},
		Rows: []map[string]string{
			{"start": "09:00", "client": "Ada, L.", "status": "confirmed"},
			{"start": "10:10", "client": "Grace", "status": "pending"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(agendaDataset())
	require.NoError(t, err)

	assert.Equal(t, "Start,Client,status\n09:00,\"Ada, L.\",confirmed\n10:10,Grace,pending\n", string(out))
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(agendaDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(agendaDataset().Columns)
	require.Len(t, widths, 3)
	assert.InDelta(t, pageWidthLandscape, widths[0]+widths[1]+widths[2], 0.001)
	assert.InDelta(t, widths[0]*2, widths[1], 0.001)
}
