// Package render formats CLI results as json, yaml or an aligned table.
//
// Without --format, a terminal gets a table and anything else gets json.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/camrelay/cli/tui"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat is case-insensitive. An empty string yields the empty
// Format, meaning "pick from the terminal".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	switch f {
	case "", FormatJSON, FormatTable, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes command results to the app's stdout.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer creates a renderer from the --format flag.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = FormatJSON
		if fd := os.Stdout.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			format = FormatTable
		}
	}

	return &Renderer{format: format, out: c.App.Writer}, nil
}

// NewRendererWithWriter fixes both the format and the destination.
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render writes data in the renderer's format.
func (r *Renderer) Render(data any) error {
	var render func(any) error
	switch r.format {
	case FormatJSON:
		render = r.renderJSON
	case FormatTable:
		render = r.renderTable
	case FormatYAML:
		render = r.renderYAML
	default:
		return fmt.Errorf("render: no encoder for format %q", r.format)
	}
	return render(data)
}

// RenderSections renders each part separately in table format, separated
// by a blank line, and the whole value otherwise.
func (r *Renderer) RenderSections(whole any, parts ...any) error {
	if r.format != FormatTable {
		return r.Render(whole)
	}
	for i, p := range parts {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		if err := r.renderTable(p); err != nil {
			return err
		}
	}
	return nil
}

// RenderTUI runs the read-only TUI for the given view.
func (r *Renderer) RenderTUI(view string, data any) error {
	if !tui.IsTUISupported(view) {
		return fmt.Errorf("--tui is not supported for %s", view)
	}
	return tui.Run(view, data)
}

func (r *Renderer) renderJSON(data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.out, "%s\n", b)
	return err
}

func (r *Renderer) renderYAML(data any) error {
	y := yaml.NewEncoder(r.out)
	defer y.Close()
	y.SetIndent(2)
	return y.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}
	return r.renderStructTable(v)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	tw := newTabWriter(r.out)
	header := fieldNames(deref(v.Index(0)))
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
	for i := range v.Len() {
		fmt.Fprintln(tw, strings.Join(rowCells(deref(v.Index(i))), "\t"))
	}
	return tw.Flush()
}

func (r *Renderer) renderStructTable(v reflect.Value) error {
	tw := newTabWriter(r.out)
	v = deref(v)
	switch v.Kind() {
	case reflect.Struct:
		for i, name := range fieldNames(v) {
			fmt.Fprintf(tw, "%s:\t%s\n", name, formatValue(v.Field(i)))
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			fmt.Fprintf(tw, "%v:\t%s\n", k.Interface(), formatValue(v.MapIndex(k)))
		}
	case reflect.Invalid:
	default:
		fmt.Fprintln(tw, v.Interface())
	}
	return tw.Flush()
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// rowCells formats one slice element; non-struct elements fill a single
// "value" column.
func rowCells(row reflect.Value) []string {
	if row.Kind() != reflect.Struct {
		return []string{formatValue(row)}
	}
	cells := make([]string, row.NumField())
	for i := range cells {
		cells[i] = formatValue(row.Field(i))
	}
	return cells
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// fieldNames returns column names for a struct, preferring json tags.
func fieldNames(v reflect.Value) []string {
	if v.Kind() != reflect.Struct {
		return []string{"value"}
	}
	t := v.Type()
	names := make([]string, t.NumField())
	for i := range names {
		f := t.Field(i)
		names[i] = strings.ToLower(f.Name)
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
			names[i] = tag
		}
	}
	return names
}

func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}

func formatValue(v reflect.Value) string {
	v = deref(v)
	if !v.IsValid() {
		return ""
	}

	if t, ok := v.Interface().(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("<%d bytes>", v.Len())
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		pairs := make([]string, 0, v.Len())
		for _, k := range sortedKeys(v) {
			pairs = append(pairs, fmt.Sprintf("%v=%s", k.Interface(), formatValue(v.MapIndex(k))))
		}
		return strings.Join(pairs, " ")
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}
