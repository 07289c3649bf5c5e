package plan

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/oshokin/extbuild/internal/extension"
	"github.com/oshokin/extbuild/internal/service/compiler"
	"github.com/oshokin/extbuild/internal/service/orchestrator"
)

// NativePlanner computes native build commands without running them.
type NativePlanner interface {
	Configuration(target *extension.NativeTarget) (*orchestrator.BuildConfiguration, error)
	BuildArguments(target *extension.NativeTarget) []string
}

// StandardPlanner computes standard build commands without running them.
type StandardPlanner interface {
	Plan(ext *extension.StandardExtension) ([]*compiler.Module, error)
}

// Options configures a renderer.
type Options struct {
	// Native plans native targets.
	Native NativePlanner
	// Standard plans standard extensions.
	Standard StandardPlanner
	// Out receives the table.
	Out io.Writer
	// Color highlights the kind column.
	Color bool
}

// Row is one planned step.
type Row struct {
	Index   int
	Kind    extension.Kind
	Name    string
	Step    string
	Output  string
	Command []string
}

// Renderer prints the steps a build would run.
type Renderer struct {
	opts Options
	rows []Row
}

// New creates a renderer.
func New(opts *Options) *Renderer {
	return &Renderer{opts: *opts}
}

// Rows computes the planned steps of every descriptor in order.
func (r *Renderer) Rows(ctx context.Context, descriptors []extension.Descriptor) ([]Row, error) {
	r.rows = nil

	for i, descriptor := range descriptors {
		collector := &collector{renderer: r, index: i + 1}
		if err := descriptor.Visit(ctx, collector); err != nil {
			return nil, fmt.Errorf("plan %s: %w", descriptor.Name(), err)
		}
	}

	return r.rows, nil
}

// Render writes the planned steps as a table.
func (r *Renderer) Render(ctx context.Context, descriptors []extension.Descriptor) error {
	rows, err := r.Rows(ctx, descriptors)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(r.opts.Out)
	table.SetHeader([]string{"#", "KIND", "NAME", "STEP", "OUTPUT", "COMMAND"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")

	for _, row := range rows {
		table.Append([]string{
			strconv.Itoa(row.Index),
			r.kind(row.Kind),
			row.Name,
			row.Step,
			row.Output,
			strings.Join(row.Command, " "),
		})
	}

	table.Render()

	return nil
}

func (r *Renderer) kind(kind extension.Kind) string {
	if !r.opts.Color {
		return string(kind)
	}

	if kind == extension.KindNative {
		return color.Cyan.Sprint(string(kind))
	}

	return color.Magenta.Sprint(string(kind))
}

// collector appends the rows of one descriptor.
type collector struct {
	renderer *Renderer
	index    int
}

func (c *collector) VisitNative(_ context.Context, target *extension.NativeTarget) error {
	cfg, err := c.renderer.opts.Native.Configuration(target)
	if err != nil {
		return err
	}

	c.add(Row{
		Kind:    target.Kind(),
		Name:    target.Name(),
		Step:    "configure",
		Output:  cfg.OutputDirectory,
		Command: cfg.GeneratorArguments,
	})
	c.add(Row{
		Kind:    target.Kind(),
		Name:    target.Name(),
		Step:    "build",
		Output:  cfg.OutputDirectory,
		Command: c.renderer.opts.Native.BuildArguments(target),
	})

	return nil
}

func (c *collector) VisitStandard(_ context.Context, ext *extension.StandardExtension) error {
	modules, err := c.renderer.opts.Standard.Plan(ext)
	if err != nil {
		return err
	}

	for _, module := range modules {
		for _, compile := range module.Compile {
			c.add(Row{
				Kind:    ext.Kind(),
				Name:    module.Name,
				Step:    "compile",
				Output:  module.Output,
				Command: compile.Command(),
			})
		}

		c.add(Row{
			Kind:    ext.Kind(),
			Name:    module.Name,
			Step:    "link",
			Output:  module.Output,
			Command: module.Link.Command(),
		})
	}

	return nil
}

func (c *collector) add(row Row) {
	row.Index = c.index
	c.renderer.rows = append(c.renderer.rows, row)
}
