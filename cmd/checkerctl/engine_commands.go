package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/noah-isme/fourset-checker/internal/app"
	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/service"
	"github.com/noah-isme/fourset-checker/pkg/storage"
)

func (c *cli) rebuildCommand() *cobra.Command {
	var grade, resume string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every student and aggregate of a grade",
		Long: `Rebuild re-merges and re-validates every roster student of a grade, then
folds classes, schools, groups and districts bottom-up. Each finished level is
checkpointed; pass --resume with a run ID printed by an interrupted run to
continue after its last completed level.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runID := resume
			if runID == "" {
				runID = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s grade %s\n", runID, grade)

			return c.withEngine(cmd.Context(), func(e *app.Engine) error {
				progress := make(chan models.RebuildProgress, 16)
				done := make(chan struct{})
				go func() {
					defer close(done)
					printProgress(cmd, progress)
				}()

				checkpoint, err := e.Recompute.Rebuild(cmd.Context(), grade, service.RebuildOptions{RunID: runID, Progress: progress})
				close(progress)
				<-done
				if err != nil {
					return fmt.Errorf("rebuild interrupted, resume with --resume %s: %w", runID, err)
				}
				if len(checkpoint.Skipped) > 0 {
					fmt.Fprintf(out, "skipped %d contaminated students: %s\n", len(checkpoint.Skipped), strings.Join(checkpoint.Skipped, ", "))
				}
				fmt.Fprintf(out, "finished levels %v\n", checkpoint.Completed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "grade label to rebuild")
	cmd.Flags().StringVar(&resume, "resume", "", "run ID of an interrupted rebuild")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}

// printProgress prints one line per level change and every tenth of a level.
func printProgress(cmd *cobra.Command, progress <-chan models.RebuildProgress) {
	var level models.Level
	var lastStep int
	for p := range progress {
		step := int(p.Fraction * 10)
		if p.Level == level && step == lastStep && p.Done != p.Total {
			continue
		}
		level, lastStep = p.Level, step
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %5d/%-5d %3.0f%%\n", p.Level, p.Done, p.Total, p.Fraction*100)
	}
}

func (c *cli) studentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "student ID",
		Short: "Recompute one student and print the resulting records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(e *app.Engine) error {
				result, err := e.Recompute.RecomputeStudent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func (c *cli) conflictsCommand() *cobra.Command {
	var grade, format, outDir string
	cmd := &cobra.Command{
		Use:   "conflicts ID",
		Short: "Export the merge conflict report of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(e *app.Engine) error {
				report, err := e.Conflicts.Get(cmd.Context(), grade, args[0])
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(cmd.OutOrStdout(), report)
				}
				file, err := e.Conflicts.Export(report, format)
				if err != nil {
					return err
				}
				exports, err := storage.NewLocalStorage(outDir)
				if err != nil {
					return err
				}
				path, err := exports.Save(file.Filename, file.Body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d conflicts written to %s\n", len(report.Conflicts), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "grade label")
	cmd.Flags().StringVar(&format, "format", "json", "json, csv or pdf")
	cmd.Flags().StringVar(&outDir, "out", "./exports", "directory for csv/pdf exports")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}

func (c *cli) ingestCommand() *cobra.Command {
	var source, studentID, grade, submissionID, file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store a raw source submission for a student",
		Long: `Ingest stores one raw submission exactly as a source delivered it. Use it to
replay a form upload or a survey export by hand; run "student" afterwards to
recompute.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, err := readSubmission(source, studentID, grade, submissionID, file)
			if err != nil {
				return err
			}
			return c.withEngine(cmd.Context(), func(e *app.Engine) error {
				if err := e.Answers.Save(cmd.Context(), sub); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s submission %s for %s\n", sub.Source, sub.SubmissionID, sub.StudentID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "primary or secondary")
	cmd.Flags().StringVar(&studentID, "student", "", "student ID")
	cmd.Flags().StringVar(&grade, "grade", "", "grade label, when the source provides one")
	cmd.Flags().StringVar(&submissionID, "submission-id", "", "source submission ID (generated when empty)")
	cmd.Flags().StringVar(&file, "file", "", "JSON payload file")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readSubmission builds a submission from flags and checks the payload parses
// before anything is stored.
func readSubmission(source, studentID, grade, submissionID, file string) (models.SourceSubmission, error) {
	src := models.Source(strings.ToLower(source))
	if !src.Valid() {
		return models.SourceSubmission{}, fmt.Errorf("unknown source %q", source)
	}
	payload, err := os.ReadFile(file)
	if err != nil {
		return models.SourceSubmission{}, fmt.Errorf("read payload: %w", err)
	}
	if submissionID == "" {
		submissionID = uuid.NewString()
	}
	sub := models.SourceSubmission{
		SubmissionID: submissionID,
		Source:       src,
		StudentID:    studentID,
		Grade:        grade,
		SubmittedAt:  time.Now().UTC(),
		Payload:      payload,
	}
	if _, err := service.NewAnswerNormalizer().Normalize(sub); err != nil {
		return models.SourceSubmission{}, err
	}
	return sub, nil
}

func (c *cli) purgeCommand() *cobra.Command {
	var grade string
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored record and summary of a grade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("purge is destructive; pass --yes to confirm")
			}
			return c.withEngine(cmd.Context(), func(e *app.Engine) error {
				if err := e.Recompute.PurgeGrade(cmd.Context(), grade); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged grade %s\n", grade)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&grade, "grade", "", "grade label to purge")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	_ = cmd.MarkFlagRequired("grade")
	return cmd
}
