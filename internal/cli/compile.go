package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/patientlist/internal/config"
	"github.com/rpattn/patientlist/internal/db"
	"github.com/rpattn/patientlist/internal/domain"
	"github.com/rpattn/patientlist/internal/fields"
	"github.com/rpattn/patientlist/internal/logging"
	"github.com/rpattn/patientlist/internal/query"
	"github.com/rpattn/patientlist/internal/repository"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	List             string
	PersonAttributes []string
	VisitAttributes  []string
	Page             int
	Limit            int
	LogLevel         string
}

// CompileResult is the json output of the compile command.
type CompileResult struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Query  string `json:"query"`
	Count  string `json:"countQuery"`
	Args   []any  `json:"args"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [list.yaml]",
		Short: "Print the SQL a patient list definition compiles to",
		Long: `Compile a patient list definition read from a YAML file (or "-" for stdin)
and print the query text and its positional arguments. No database is needed;
attribute fields are declared with --person-attr and --visit-attr.

With --list, the saved list of that name is loaded from the configured
database instead, and attribute fields come from its attribute types.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.List, "list", "", "name of a saved patient list to compile")
	cmd.Flags().StringSliceVar(&opts.PersonAttributes, "person-attr", nil, "person attribute type names")
	cmd.Flags().StringSliceVar(&opts.VisitAttributes, "visit-attr", nil, "visit attribute type names")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page to window the query to (1-based)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "warn", "level of compile diagnostics written to stderr")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	var (
		list     domain.PatientList
		registry *fields.Registry
		err      error
	)
	switch {
	case opts.List != "" && len(args) > 0:
		return errors.New("pass either a list definition file or --list, not both")
	case opts.List != "":
		list, registry, err = loadSavedList(cmd.Context(), opts)
	case len(args) == 1:
		list, err = readListDefinition(args[0], cmd.InOrStdin())
		registry = fields.Standard(opts.PersonAttributes, opts.VisitAttributes).Build()
	default:
		return errors.New("a list definition file or --list is required")
	}
	if err != nil {
		return err
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.Config{Level: opts.LogLevel})
	compiled := query.NewCompiler(registry, logger).Compile(list)

	if opts.Limit > 0 {
		paging := domain.NewPagingInfo(opts.Page, opts.Limit)
		compiled = compiled.Window(paging.Offset(), paging.Limit())
	}
	if err := compiled.Check(); err != nil {
		return fmt.Errorf("compiled query is inconsistent: %w", err)
	}

	result := CompileResult{
		Name:   list.Name,
		Target: compiled.Target.String(),
		Query:  compiled.Text,
		Count:  compiled.Count().Text,
		Args:   compiled.Args,
	}
	return writeCompileResult(cmd.OutOrStdout(), opts.Format, result)
}

func loadSavedList(ctx context.Context, opts *CompileOptions) (domain.PatientList, *fields.Registry, error) {
	cfg, _, err := config.Load(opts.ConfigDir)
	if err != nil {
		return domain.PatientList{}, nil, err
	}
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return domain.PatientList{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	registry, err := loadRegistry(ctx, repository.NewAttributeTypeRepository(conn.Pool))
	if err != nil {
		return domain.PatientList{}, nil, err
	}
	list, err := findSavedList(ctx, repository.NewPatientListRepository(conn.Pool), opts.List)
	if err != nil {
		return domain.PatientList{}, nil, err
	}
	return list, registry, nil
}

type listFinder interface {
	GetByName(ctx context.Context, name string) (domain.PatientList, error)
}

func findSavedList(ctx context.Context, lists listFinder, name string) (domain.PatientList, error) {
	list, err := lists.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.PatientList{}, fmt.Errorf("no saved patient list named %q", name)
	}
	return list, err
}

func readListDefinition(path string, stdin io.Reader) (domain.PatientList, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.PatientList{}, fmt.Errorf("reading list definition: %w", err)
	}

	var list domain.PatientList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return domain.PatientList{}, fmt.Errorf("parsing list definition: %w", err)
	}
	return list, nil
}

func writeCompileResult(w io.Writer, format string, result CompileResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "-- %s (%s)\n%s\n", result.Name, result.Target, result.Query)
	for i, arg := range result.Args {
		fmt.Fprintf(w, "-- $%d = %#v\n", i+1, formatArg(arg))
	}
	return nil
}

func formatArg(arg any) any {
	if s, ok := arg.(fmt.Stringer); ok {
		return s.String()
	}
	return arg
}
