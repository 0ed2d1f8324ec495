package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"buildtrack/internal/repository"
	"buildtrack/internal/service"
)

// ImportCmd returns the import command
func ImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a schedule file into a section",
		Long: `Import a schedule XML file into a section, exactly like an upload from the
planner UI. The previous active file of the section is marked replaced.

Usage:
  trackctl import --section <uuid> --file schedule.xml --user planner1`,
		RunE: runImport,
	}

	cmd.Flags().String("section", "", "Section ID (required)")
	cmd.Flags().String("file", "", "Path to the schedule XML (required)")
	cmd.Flags().String("user", "", "Username recorded as uploader")
	_ = cmd.MarkFlagRequired("section")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	sectionID, _ := cmd.Flags().GetString("section")
	path, _ := cmd.Flags().GetString("file")
	username, _ := cmd.Flags().GetString("user")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	userID := ""
	if username != "" {
		user, err := repository.NewUserRepository(e.db).GetByUsername(cmd.Context(), username)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %s not found", username)
		}
		if err != nil {
			return err
		}
		userID = user.ID.String()
	}

	importer, _, closeStore, err := e.services(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := importer.ImportSchedule(cmd.Context(), userID, sectionID, filepath.Base(path), data)
	var capErr *service.CapacityError
	if errors.As(err, &capErr) {
		return fmt.Errorf("%s: %s (committed %s, new total %s)", capErr.Scope, capErr.Reason, capErr.Committed, capErr.Total)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s imported %s as %s\n", okMark, filepath.Base(path), res.XmlFile.ID)
	fmt.Printf("  work items: %d created, %d updated\n", res.CreatedCount, res.UpsertedCount-res.CreatedCount)
	return nil
}

// ExportCmd returns the export command
func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a section as schedule XML or progress workbook",
		Long: `Export a section.

Modes:
  full    every work item with its approved volume
  facts   only work items that have approved volume
  report  progress workbook (.xlsx)
  pdf     progress report (.pdf)

Usage:
  trackctl export --section <uuid> --mode facts --out ./out`,
		RunE: runExport,
	}

	cmd.Flags().String("section", "", "Section ID (required)")
	cmd.Flags().String("mode", service.ExportFull, "full, facts, report or pdf")
	cmd.Flags().String("out", ".", "Output directory")
	_ = cmd.MarkFlagRequired("section")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	sectionID, _ := cmd.Flags().GetString("section")
	mode, _ := cmd.Flags().GetString("mode")
	outDir, _ := cmd.Flags().GetString("out")

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	_, exporter, closeStore, err := e.services(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	var file *service.ExportFile
	switch mode {
	case "report":
		file, err = exporter.ExportReport(cmd.Context(), sectionID)
	case "pdf":
		file, err = exporter.ExportReportPDF(cmd.Context(), sectionID)
	default:
		file, err = exporter.ExportSchedule(cmd.Context(), sectionID, mode)
	}
	if errors.Is(err, service.ErrNotFound) {
		fmt.Println(warnText("nothing to export: " + err.Error()))
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(outDir, file.Filename)
	if err := os.WriteFile(target, file.Data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s wrote %s (%d bytes)\n", okMark, target, len(file.Data))
	return nil
}
