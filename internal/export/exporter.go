package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rebeliceyang/lazygrid/internal/models"
)

// Record is the JSON form of one exported row
type Record struct {
	ID        string            `json:"id"`
	Order     int               `json:"order"`
	OrigOrder int               `json:"origOrder"`
	Values    map[string]string `json:"values"`
}

// WriteCSV writes the view's rows with a header of column names in order
func WriteCSV(w io.Writer, view *models.TableView) error {
	writer := csv.NewWriter(w)

	header := view.ColumnNames()
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range view.Rows {
		row := &view.Rows[i]
		record := make([]string, len(header))
		for j, name := range header {
			// a missing cell exports as empty
			if c, ok := row.Cell(name); ok {
				record[j] = c.Value
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the view's rows as an indented JSON array
func WriteJSON(w io.Writer, view *models.TableView) error {
	records := make([]Record, 0, len(view.Rows))
	for i := range view.Rows {
		row := &view.Rows[i]
		values := make(map[string]string, len(view.Columns))
		for _, col := range view.Columns {
			c, _ := row.Cell(col.Name)
			values[col.Name] = c.Value
		}
		records = append(records, Record{ID: row.ID, Order: row.Order, OrigOrder: row.OrigOrder, Values: values})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to marshal rows to JSON: %w", err)
	}
	return nil
}

// ExportToCSV exports a view to a CSV file
func ExportToCSV(view *models.TableView, path string) error {
	return exportFile(path, func(w io.Writer) error { return WriteCSV(w, view) })
}

// ExportToJSON exports a view to a JSON file
func ExportToJSON(view *models.TableView, path string) error {
	return exportFile(path, func(w io.Writer) error { return WriteJSON(w, view) })
}

func exportFile(path string, write func(io.Writer) error) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
