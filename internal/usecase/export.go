package usecase

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"launchpad-backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

var (
	userExportHeaders    = []string{"USER ID", "EMAIL", "NAME", "ROLE", "PROJECTS", "SUBSCRIPTION", "PLAN", "JOINED"}
	projectExportHeaders = []string{"PROJECT ID", "USER EMAIL", "NAME", "STATUS", "PROGRESS (%)", "PHASE", "PLAN", "ESTIMATED DELIVERY", "CREATED"}
	flatExportHeaders    = []string{"user_id", "email", "name", "role", "project_id", "project_name", "status", "progress", "current_phase", "plan", "estimated_delivery", "created_at"}
)

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func userRow(u domain.AdminUser) []any {
	return []any{u.ID, u.Email, u.Name, string(u.Role), u.ProjectCount, u.SubscriptionStatus, u.PlanName, formatDate(&u.CreatedAt)}
}

func projectRow(p domain.Project, email string) []any {
	return []any{p.ID, email, p.Name, p.Status, p.Progress, p.CurrentPhase, p.Plan, formatDate(p.EstimatedDelivery), formatDate(&p.CreatedAt)}
}

// renderExport builds the users and projects spreadsheet in the requested
// format.
func renderExport(format string, users []domain.AdminUser, projects []domain.Project, now time.Time) (*domain.ExportFile, error) {
	stamp := now.UTC().Format("20060102_150405")
	switch format {
	case "xlsx", "":
		data, err := exportExcel(users, projects)
		if err != nil {
			return nil, err
		}
		return &domain.ExportFile{
			Filename:    fmt.Sprintf("launchpad_export_%s.xlsx", stamp),
			ContentType: contentTypeXLSX,
			Data:        data,
		}, nil
	case "csv":
		data, err := exportCSV(users, projects)
		if err != nil {
			return nil, err
		}
		return &domain.ExportFile{
			Filename:    fmt.Sprintf("launchpad_export_%s.csv", stamp),
			ContentType: contentTypeCSV,
			Data:        data,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// exportExcel writes a Users sheet and a Projects sheet
func exportExcel(users []domain.AdminUser, projects []domain.Project) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Dark blue header with white text
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1E3A5F"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	emails := make(map[string]string, len(users))
	userRows := make([][]any, 0, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
		userRows = append(userRows, userRow(u))
	}
	projectRows := make([][]any, 0, len(projects))
	for _, p := range projects {
		projectRows = append(projectRows, projectRow(p, emails[p.UserID]))
	}

	if err := f.SetSheetName("Sheet1", "Users"); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet("Projects"); err != nil {
		return nil, fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := writeSheet(f, "Users", userExportHeaders, userRows, headerStyle); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "Projects", projectExportHeaders, projectRows, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", endCell, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for rowIdx, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	// Approximate auto-fit
	for i := range headers {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, colName, colName, 22)
	}
	return nil
}

// csvSafe prefixes cells a spreadsheet would evaluate as a formula.
func csvSafe(row []string) []string {
	for i, v := range row {
		if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
			row[i] = "'" + v
		}
	}
	return row
}

// exportCSV flattens users and projects into one row per project; users
// without a project get a single row with empty project columns.
func exportCSV(users []domain.AdminUser, projects []domain.Project) ([]byte, error) {
	byUser := make(map[string][]domain.Project, len(users))
	for _, p := range projects {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(flatExportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, u := range users {
		base := []string{u.ID, u.Email, u.Name, string(u.Role)}
		owned := byUser[u.ID]
		if len(owned) == 0 {
			if err := w.Write(csvSafe(append(base, "", "", "", "", "", "", "", ""))); err != nil {
				return nil, fmt.Errorf("failed to write CSV row: %w", err)
			}
			continue
		}
		for _, p := range owned {
			row := append(append([]string{}, base...),
				p.ID, p.Name, p.Status, fmt.Sprintf("%d", p.Progress), p.CurrentPhase, p.Plan,
				formatDate(p.EstimatedDelivery), formatDate(&p.CreatedAt),
			)
			if err := w.Write(csvSafe(row)); err != nil {
				return nil, fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
