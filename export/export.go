// Package export writes report lists as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"p9e.in/zeladoria/models"
	"p9e.in/zeladoria/pkg/reportquery"
)

// SheetName is the worksheet holding the report rows.
const SheetName = "Ocorrências"

const (
	titleRow  = 1
	genRow    = 2
	headerRow = 4
	firstData = 5
	timeCells = "02/01/2006 15:04"
)

// Headers are the exported columns, in order.
var Headers = []string{
	"ID", "Tipo", "Descrição", "Endereço", "Latitude", "Longitude", "Status",
	"Criado em", "Atualizado em", "Reclamante", "Telefone", "Gabinete",
	"Resolução", "Responsável", "Data resolução",
}

func record(r models.Report) []string {
	var lat, lng, updated, name, phone, resDesc, resBy, resDate string
	if r.Coordinates != nil {
		lat = strconv.FormatFloat(r.Coordinates.Lat, 'f', 6, 64)
		lng = strconv.FormatFloat(r.Coordinates.Lng, 'f', 6, 64)
	}
	if r.UpdatedAt != nil {
		updated = r.UpdatedAt.Time().Format(timeCells)
	}
	if r.Complainant != nil {
		name, phone = r.Complainant.FullName, r.Complainant.Phone
	}
	if r.Resolution != nil {
		resDesc = r.Resolution.Description
		resBy = r.Resolution.Responsible
		resDate = r.Resolution.Date.Time().Format(timeCells)
	}
	return []string{
		strconv.Itoa(r.ID), r.Type, r.Description, r.Address, lat, lng, string(r.Status),
		r.CreatedAt.Time().Format(timeCells), updated, name, phone, r.GabineteID(),
		resDesc, resBy, resDate,
	}
}

// WriteXLSX renders reports as a workbook with a title, the report rows and
// a status summary below them.
func WriteXLSX(w io.Writer, title string, reports []models.Report, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 16,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	f.SetCellValue(SheetName, "A1", title)
	f.SetCellStyle(SheetName, "A1", "A1", titleStyle)
	f.SetRowHeight(SheetName, titleRow, 30)

	genCell, _ := excelize.CoordinatesToCellName(1, genRow)
	f.SetCellValue(SheetName, genCell, "Gerado em: "+generatedAt.Format(timeCells))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Color: "FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for colIdx, header := range Headers {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, headerRow)
		f.SetCellValue(SheetName, cell, header)
		f.SetCellStyle(SheetName, cell, cell, headerStyle)
		col := columnIndexToLetter(colIdx + 1)
		f.SetColWidth(SheetName, col, col, 20)
	}

	dataStyle, _ := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "CCCCCC", Style: 1},
			{Type: "right", Color: "CCCCCC", Style: 1},
			{Type: "top", Color: "CCCCCC", Style: 1},
			{Type: "bottom", Color: "CCCCCC", Style: 1},
		},
	})
	for rowIdx, r := range reports {
		row := firstData + rowIdx
		for colIdx, value := range record(r) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
			// numeric cells stay numeric so the sheet can sort and sum
			switch colIdx {
			case 0:
				f.SetCellValue(SheetName, cell, r.ID)
			case 4:
				if r.Coordinates != nil {
					f.SetCellFloat(SheetName, cell, r.Coordinates.Lat, 6, 64)
				}
			case 5:
				if r.Coordinates != nil {
					f.SetCellFloat(SheetName, cell, r.Coordinates.Lng, 6, 64)
				}
			default:
				f.SetCellValue(SheetName, cell, value)
			}
			f.SetCellStyle(SheetName, cell, cell, dataStyle)
		}
	}
	if len(reports) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(Headers), firstData+len(reports)-1)
		f.AutoFilter(SheetName, "A"+strconv.Itoa(headerRow)+":"+last, nil)
	}

	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E7E6E6"},
			Pattern: 1,
		},
	})
	summaryRow := firstData + len(reports) + 2
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	f.SetCellValue(SheetName, cell, "Resumo")
	f.SetCellStyle(SheetName, cell, cell, summaryStyle)

	for _, kv := range summary(reportquery.ComputeStats(reports)) {
		summaryRow++
		keyCell, _ := excelize.CoordinatesToCellName(1, summaryRow)
		valueCell, _ := excelize.CoordinatesToCellName(2, summaryRow)
		f.SetCellValue(SheetName, keyCell, kv.label)
		f.SetCellValue(SheetName, valueCell, kv.value)
	}

	f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

type summaryLine struct {
	label string
	value int
}

func summary(s reportquery.Stats) []summaryLine {
	return []summaryLine{
		{"Total", s.TotalReports},
		{string(models.StatusPending), s.PendingReports},
		{string(models.StatusInProgress), s.InProgressReports},
		{string(models.StatusResolved), s.ResolvedReports},
	}
}

// WriteCSV renders reports with the same columns as WriteXLSX.
func WriteCSV(w io.Writer, reports []models.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Headers); err != nil {
		return err
	}
	for _, r := range reports {
		if err := writer.Write(record(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Filename builds "<prefix>_<yyyymmdd_hhmmss>.<ext>" with prefix made safe
// for a Content-Disposition header.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", sanitizeFilename(prefix), now.Format("20060102_150405"), ext)
}

func sanitizeFilename(filename string) string {
	result := make([]rune, 0, len(filename))
	for _, char := range filename {
		switch char {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', ';', ',':
			result = append(result, '_')
		default:
			result = append(result, char)
		}
	}
	if len(result) == 0 {
		return "relatorio"
	}
	return string(result)
}

func columnIndexToLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+(col%26))) + result
		col /= 26
	}
	return result
}
