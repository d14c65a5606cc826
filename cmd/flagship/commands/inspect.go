package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goexperiment/internal/cli"
	"github.com/TimurManjosov/goexperiment/internal/condition"
	"github.com/TimurManjosov/goexperiment/internal/project"
)

var inspectWhere string

type experimentSummary struct {
	Key        string   `json:"key" yaml:"key"`
	ID         string   `json:"id" yaml:"id"`
	Status     string   `json:"status" yaml:"status"`
	Group      string   `json:"group,omitempty" yaml:"group,omitempty"`
	Variations []string `json:"variations" yaml:"variations"`
}

type featureSummary struct {
	Key         string   `json:"key" yaml:"key"`
	Rollout     string   `json:"rollout,omitempty" yaml:"rollout,omitempty"`
	Experiments int      `json:"experiments" yaml:"experiments"`
	Variables   []string `json:"variables" yaml:"variables"`
}

type audienceSummary struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Segments []string `json:"segments,omitempty" yaml:"segments,omitempty"`
}

type projectSummary struct {
	ProjectID   string              `json:"projectId" yaml:"projectId"`
	Revision    string              `json:"revision" yaml:"revision"`
	Experiments []experimentSummary `json:"experiments" yaml:"experiments"`
	Features    []featureSummary    `json:"features" yaml:"features"`
	Audiences   []audienceSummary   `json:"audiences" yaml:"audiences"`
	Holdouts    int                 `json:"holdouts" yaml:"holdouts"`
}

func summarize(cfg *project.Config) projectSummary {
	s := projectSummary{
		ProjectID: cfg.ProjectID,
		Revision:  cfg.Revision,
		Holdouts:  len(cfg.Holdouts()),
	}
	for _, aud := range cfg.Audiences() {
		s.Audiences = append(s.Audiences, audienceSummary{
			ID:       aud.ID,
			Name:     aud.Name,
			Segments: condition.QualifiedSegments(aud.Conditions),
		})
	}
	for _, exp := range cfg.Experiments() {
		es := experimentSummary{Key: exp.Key, ID: exp.ID, Status: string(exp.Status), Group: exp.GroupID}
		for _, v := range exp.Variations {
			es.Variations = append(es.Variations, v.Key)
		}
		s.Experiments = append(s.Experiments, es)
	}
	for _, key := range cfg.FeatureKeys() {
		flag, err := cfg.GetFeatureByKey(key)
		if err != nil {
			continue
		}
		fs := featureSummary{Key: flag.Key, Rollout: flag.RolloutID, Experiments: len(flag.ExperimentIDs)}
		for _, v := range flag.Variables {
			fs.Variables = append(fs.Variables, v.Key+":"+string(v.Type))
		}
		s.Features = append(s.Features, fs)
	}
	return s
}

func summaryTable(s projectSummary) cli.Table {
	t := cli.Table{Header: []string{"Kind", "Key", "Detail"}}
	for _, e := range s.Experiments {
		detail := e.Status + " [" + strings.Join(e.Variations, ", ") + "]"
		if e.Group != "" {
			detail += " group " + e.Group
		}
		t.Rows = append(t.Rows, []string{"experiment", e.Key, detail})
	}
	for _, f := range s.Features {
		detail := strconv.Itoa(f.Experiments) + " experiments"
		if f.Rollout != "" {
			detail += ", rollout " + f.Rollout
		}
		t.Rows = append(t.Rows, []string{"feature", f.Key, detail})
	}
	for _, a := range s.Audiences {
		detail := a.Name
		if len(a.Segments) > 0 {
			detail += " (segments " + strings.Join(a.Segments, ", ") + ")"
		}
		t.Rows = append(t.Rows, []string{"audience", a.ID, detail})
	}
	return t
}

// whereFilter keeps the summary entries for which a CEL expression holds.
// Every entry sees the same variables; fields that do not apply to its kind
// are zero.
type whereFilter struct {
	program cel.Program
}

func newWhereFilter(expr string) (*whereFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("key", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("group", cel.StringType),
		cel.Variable("rollout", cel.StringType),
		cel.Variable("experiments", cel.IntType),
		cel.Variable("variations", cel.ListType(cel.StringType)),
		cel.Variable("variables", cel.ListType(cel.StringType)),
		cel.Variable("segments", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid --where expression: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("--where expression must be a boolean, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &whereFilter{program: prg}, nil
}

func (f *whereFilter) match(vars map[string]any) (bool, error) {
	for _, name := range []string{"kind", "key", "status", "group", "rollout"} {
		if _, ok := vars[name]; !ok {
			vars[name] = ""
		}
	}
	for _, name := range []string{"variations", "variables", "segments"} {
		if list, _ := vars[name].([]string); list == nil {
			vars[name] = []string{}
		}
	}
	if _, ok := vars["experiments"]; !ok {
		vars["experiments"] = int64(0)
	}
	out, _, err := f.program.Eval(vars)
	if err != nil {
		return false, err
	}
	return out.Value() == true, nil
}

func (f *whereFilter) apply(s projectSummary) (projectSummary, error) {
	filtered := s
	filtered.Experiments, filtered.Features, filtered.Audiences = nil, nil, nil
	for _, e := range s.Experiments {
		ok, err := f.match(map[string]any{
			"kind": "experiment", "key": e.Key, "status": e.Status, "group": e.Group, "variations": e.Variations,
		})
		if err != nil {
			return s, fmt.Errorf("evaluate --where on experiment %q: %w", e.Key, err)
		}
		if ok {
			filtered.Experiments = append(filtered.Experiments, e)
		}
	}
	for _, ft := range s.Features {
		ok, err := f.match(map[string]any{
			"kind": "feature", "key": ft.Key, "rollout": ft.Rollout, "experiments": int64(ft.Experiments), "variables": ft.Variables,
		})
		if err != nil {
			return s, fmt.Errorf("evaluate --where on feature %q: %w", ft.Key, err)
		}
		if ok {
			filtered.Features = append(filtered.Features, ft)
		}
	}
	for _, a := range s.Audiences {
		ok, err := f.match(map[string]any{"kind": "audience", "key": a.ID, "segments": a.Segments})
		if err != nil {
			return s, fmt.Errorf("evaluate --where on audience %q: %w", a.ID, err)
		}
		if ok {
			filtered.Audiences = append(filtered.Audiences, a)
		}
	}
	return filtered, nil
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the local datafile",
	Long: `List the experiments and feature flags of the local datafile.

--where takes a CEL expression over kind, key, status, group, rollout,
experiments, variations, variables and segments.

Example:
  flagship inspect --datafile project.json --format yaml
  flagship inspect --where 'kind == "experiment" && status == "Running"'
  flagship inspect --where '"premium" in segments'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadLocal()
		if err != nil {
			return err
		}
		s := summarize(cfg)
		if inspectWhere != "" {
			f, err := newWhereFilter(inspectWhere)
			if err != nil {
				return err
			}
			if s, err = f.apply(s); err != nil {
				return err
			}
		}
		return render(cmd, s, summaryTable(s))
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectWhere, "where", "", "CEL expression selecting the entries to show")
	rootCmd.AddCommand(inspectCmd)
}
