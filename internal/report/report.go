package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/workmgmt/tasklens/internal/models"
)

var ErrNoTasks = errors.New("failed to generate report, 0 task were provided")

// Generator holds the state for the Excel report generation process.
type Generator struct {
	file *excelize.File
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		file: excelize.NewFile(),
	}
}

// GenerateExcelReport renders the given tasks into an Excel workbook with one
// sheet per project. Tasks keep their listing order inside each sheet. If no
// tasks are provided it returns ErrNoTasks. The function returns a
// bytes.Buffer containing the Excel file or an error if any operation fails.
func GenerateExcelReport(tasks []models.Task) (*bytes.Buffer, error) {
	var err error

	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	tasksByProject := make(map[string][]models.Task)
	for _, task := range tasks {
		name := task.ProjectName
		if name == "" {
			name = fmt.Sprintf("Project %d", task.ProjectID)
		}
		tasksByProject[name] = append(tasksByProject[name], task)
	}

	gen := NewGenerator()
	defer gen.file.Close()

	if err = gen.addSheets(tasksByProject); err != nil {
		return nil, fmt.Errorf("failed to add sheets: %w", err)
	}

	// setup first sheet as active
	gen.file.SetActiveSheet(0)

	// delete default sheet
	if sheetIndex, _ := gen.file.GetSheetIndex("Sheet1"); sheetIndex != -1 {
		if err = gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write data from saved file: %w", err)
	}

	return buffer, nil
}

// addSheets adds one sheet per project, sets it up and fills it with that
// project's tasks. It returns an error if any operation fails during the
// process.
func (g *Generator) addSheets(tasksByProject map[string][]models.Task) error {
	var err error
	headerIndex := 2

	for projectName, projectTasks := range tasksByProject {
		sheetName := truncateSheetName(projectName)

		if _, err = g.file.NewSheet(sheetName); err != nil {
			return fmt.Errorf("failed to generate new sheet '%s': %w", sheetName, err)
		}

		if err = g.setupSheet(sheetName, len(projectTasks)); err != nil {
			return fmt.Errorf("failed to setup sheet '%s': %w", sheetName, err)
		}

		// Fill data
		for i, task := range projectTasks {
			if err = g.addRow(sheetName, i+headerIndex, task); err != nil { // i+2, because the first row - header
				return fmt.Errorf("failed to add row '%d': %w", i+headerIndex, err)
			}
		}
	}
	return nil
}

// setupSheet initializes the specified sheet with headers, styles, and column widths.
// It creates a header style, sets the row height for the headers, and populates the headers
// in the first row. It also configures the width for each column and adds a table to the sheet.
//
// Parameters:
// - sheetName: The name of the sheet to set up.
// - rowCount: The number of tasks to determine the range of the table.
//
// Returns:
// - error: An error if any operation fails, otherwise returns nil.
func (g *Generator) setupSheet(sheetName string, rowCount int) error {
	var err error

	// Style creating
	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create new style: %w", err)
	}

	// Headers creating
	rowHeight := 20
	headers := []string{
		"Ticket", "Title", "Start Date", "Hours", "Rate", "Amount",
		"Currency", "Billed", "Invoice", "Paid", "Type",
	}
	if err = g.file.SetRowHeight(sheetName, 1, float64(rowHeight)); err != nil {
		return fmt.Errorf("failed to set row height for headers: %w", err)
	}
	if err = g.file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to set sheet row for headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheetName, "A1", "K1", headerStyle); err != nil {
		return fmt.Errorf("failed to set cell style for headers: %w", err)
	}

	// Setup width column
	widths := map[string]float64{
		"A": 14, "B": 50, "C": 14, "D": 10, "E": 10, "F": 12,
		"G": 10, "H": 8, "I": 16, "J": 8, "K": 14, //nolint:mnd // const values for row width
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// Add table
	if err = g.file.AddTable(sheetName, &excelize.Table{
		Range:     fmt.Sprintf("A1:K%d", rowCount+1),
		Name:      "table_" + strings.ReplaceAll(sheetName, " ", ""),
		StyleName: "TableStyleMedium9",
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	return nil
}

// addRow adds a new row to the specified sheet with the details of the given
// task. It takes the sheet name, the row number where the data should be
// added, and the task as parameters. If the operation fails, it returns an error.
func (g *Generator) addRow(sheetName string, rowNum int, task models.Task) error {
	var rate any
	if task.RateUsed != nil {
		rate = *task.RateUsed
	}

	rowData := []interface{}{
		task.TicketID,
		task.Title,
		task.StartDate.Format("02.01.2006"),
		task.HoursWorked,
		rate,
		task.Amount(),
		task.Currency,
		yesNo(task.IsBilled),
		task.InvoiceID,
		yesNo(task.IsPaid),
		task.Type,
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)

	if err := g.file.SetSheetRow(sheetName, cell, &rowData); err != nil {
		return fmt.Errorf("failed to set sheet row: %w", err)
	}

	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// truncateSheetName truncates the given sheet name to a maximum of 31 runes.
// If the name exceeds 31 runes, it returns the first 31 runes of the name.
// Otherwise, it returns the name as is.
func truncateSheetName(name string) string {
	if utf8.RuneCountInString(name) > 31 {
		runes := []rune(name)
		return string(runes[:31])
	}
	return name
}
