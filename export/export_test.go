package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"p9e.in/zeladoria/models"
)

var generated = time.Date(2025, 6, 10, 14, 5, 0, 0, time.UTC)

func reports() []models.Report {
	updated := models.JSONTime(generated)
	return []models.Report{
		{
			ID: 1, Type: "Buraco na via", Description: "Buraco, fundo", Address: "Rua A, 10",
			Coordinates: &models.Coordinates{Lat: -23.5489, Lng: -46.6388},
			Status:      models.StatusPending,
			CreatedAt:   models.JSONTime(generated.Add(-48 * time.Hour)),
			Complainant: &models.Complainant{FullName: "Maria", Phone: "1199"},
			Agent:       &models.Agent{GabineteID: "g1"},
		},
		{
			ID: 2, Type: "Lâmpada queimada", Address: "Praça",
			Status:    models.StatusResolved,
			CreatedAt: models.JSONTime(generated.Add(-24 * time.Hour)),
			UpdatedAt: &updated,
			Resolution: &models.Resolution{
				Description: "Trocada", Responsible: "Equipe 3", Date: updated,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, reports()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])

	assert.Equal(t, []string{
		"1", "Buraco na via", "Buraco, fundo", "Rua A, 10", "-23.548900", "-46.638800", "Pendente",
		"08/06/2025 14:05", "", "Maria", "1199", "g1", "", "", "",
	}, rows[1])
	assert.Equal(t, "Resolvido", rows[2][6])
	assert.Equal(t, "Trocada", rows[2][12])
	assert.Equal(t, "10/06/2025 14:05", rows[2][14])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Relatório de ocorrências", reports(), generated))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	title, err := f.GetCellValue(SheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Relatório de ocorrências", title)

	header, err := f.GetCellValue(SheetName, "B4")
	require.NoError(t, err)
	assert.Equal(t, "Tipo", header)

	id, _ := f.GetCellValue(SheetName, "A6")
	assert.Equal(t, "2", id)
	status, _ := f.GetCellValue(SheetName, "G5")
	assert.Equal(t, "Pendente", status)

	// summary starts two rows below the data
	label, _ := f.GetCellValue(SheetName, "A9")
	assert.Equal(t, "Resumo", label)
	total, _ := f.GetCellValue(SheetName, "B10")
	assert.Equal(t, "2", total)
	resolved, _ := f.GetCellValue(SheetName, "B13")
	assert.Equal(t, "1", resolved)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"ocorrencias", "ocorrencias_20250610_140500.xlsx"},
		{"Gabinete 1/Centro", "Gabinete_1_Centro_20250610_140500.xlsx"},
		{"", "relatorio_20250610_140500.xlsx"},
	}
	for _, tt := range tests {
		if got := Filename(tt.prefix, "xlsx", generated); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestColumnIndexToLetter(t *testing.T) {
	for col, want := range map[int]string{1: "A", 15: "O", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"} {
		if got := columnIndexToLetter(col); got != want {
			t.Errorf("columnIndexToLetter(%d) = %q, want %q", col, got, want)
		}
	}
}
