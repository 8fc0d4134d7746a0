// Command artifact-check verifies a deployment's preprocessor and model
// before traffic reaches them. It can also write the demo artifact pair and
// smoke-test a running server.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/fixtures"
	"github.com/banshee-data/score.report/internal/httputil"
	"github.com/banshee-data/score.report/internal/inference"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/regression"
	"github.com/banshee-data/score.report/internal/security"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})))
}

type options struct {
	artifactsDir     string
	preprocessorName string
	modelName        string
	writeDemo        string
	tree             bool
	serverURL        string
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("artifact-check", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.artifactsDir, "artifacts", "", "artifact directory to check (default: ranked fallback search)")
	fs.StringVar(&o.preprocessorName, "preprocessor", inference.DefaultPreprocessorName, "logical preprocessor name")
	fs.StringVar(&o.modelName, "model", inference.DefaultModelName, "logical model name")
	fs.StringVar(&o.writeDemo, "write-demo", "", "write the demo artifact pair into this directory and exit")
	fs.BoolVar(&o.tree, "tree", false, "with -write-demo, write a tree ensemble model instead of the linear one")
	fs.StringVar(&o.serverURL, "server", "", "also smoke-test a running server at this base URL")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func run(args []string, out io.Writer, client httputil.HTTPClient) int {
	o, err := parseFlags(args, out)
	if err != nil {
		return 2
	}

	var roots []string
	if o.artifactsDir != "" {
		roots = []string{o.artifactsDir}
	}
	resolver := artifact.NewResolver(artifact.Options{Roots: roots, Codecs: inference.NewCodecs()})

	if o.writeDemo != "" {
		return writeDemo(out, resolver, o)
	}

	ok := checkArtifacts(out, resolver, o)
	if o.serverURL != "" {
		ok = checkServer(out, client, strings.TrimRight(o.serverURL, "/")) && ok
	}
	if !ok {
		return 1
	}
	return 0
}

func writeDemo(out io.Writer, r *artifact.Resolver, o options) int {
	if err := security.ValidateOutputDir(o.writeDemo); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return 1
	}
	var paths []string
	var err error
	if o.tree {
		var pre, model string
		pre, err = r.Save(o.writeDemo, o.preprocessorName, preprocess.Kind, fixtures.Preprocessor())
		if err == nil {
			model, err = r.Save(o.writeDemo, o.modelName, regression.KindTreeEnsemble, fixtures.TreeModel())
		}
		paths = []string{pre, model}
	} else {
		paths, err = fixtures.WriteDemoArtifacts(r, o.writeDemo, o.preprocessorName, o.modelName)
	}
	if err != nil {
		fmt.Fprintf(out, "✗ failed to write demo artifacts: %v\n", err)
		return 1
	}
	for _, p := range paths {
		fmt.Fprintf(out, "✓ wrote %s\n", p)
	}
	return 0
}

func checkArtifacts(out io.Writer, r *artifact.Resolver, o options) bool {
	fmt.Fprintf(out, "Searching %d root(s):\n", len(r.Roots()))
	for _, root := range r.Roots() {
		fmt.Fprintf(out, "  %s\n", root)
	}

	for _, name := range []string{o.preprocessorName, o.modelName} {
		fmt.Fprintf(out, "\n%s:\n", name)
		for _, c := range r.Probe(name) {
			switch {
			case c.Exists:
				fmt.Fprintf(out, "  found   %s (%d bytes)\n", c.Path, c.Size)
			case c.Err != "":
				fmt.Fprintf(out, "  error   %s: %s\n", c.Path, c.Err)
			default:
				fmt.Fprintf(out, "  missing %s\n", c.Path)
			}
		}
		if c, env, err := r.Inspect(name); err == nil {
			fmt.Fprintf(out, "  kind %s (version %d) at %s\n", env.Kind, env.FormatVersion, c.Path)
		}
	}

	p := inference.New(inference.Config{
		Source:           r,
		PreprocessorName: o.preprocessorName,
		ModelName:        o.modelName,
	})
	h := p.Check()
	fmt.Fprintln(out)
	for _, s := range []inference.ArtifactStatus{h.Preprocessor, h.Model} {
		if s.Loaded {
			fmt.Fprintf(out, "✓ %s loads\n", s.Name)
		} else {
			fmt.Fprintf(out, "✗ %s: %s\n", s.Name, s.Error)
		}
	}
	if h.Status != inference.StatusHealthy {
		return false
	}
	printShapes(out, r, o)

	value, err := p.Predict(fixtures.SampleInput())
	if err != nil {
		fmt.Fprintf(out, "✗ sample prediction failed (%s): %v\n", failure.Root(err), err)
		return false
	}
	fmt.Fprintf(out, "✓ sample prediction: %g\n", value)
	return true
}

// printShapes reports the preprocessor's input and output widths and the
// number of features the model expects.
func printShapes(out io.Writer, r *artifact.Resolver, o options) {
	width := -1
	if obj, err := r.Resolve(o.preprocessorName); err == nil {
		if ct, ok := obj.(*preprocess.ColumnTransformer); ok {
			width = ct.OutputWidth()
			fmt.Fprintf(out, "  %s: %d input columns -> %d features\n", o.preprocessorName, len(ct.InputColumns()), width)
		}
	}
	if obj, err := r.Resolve(o.modelName); err == nil {
		if m, ok := obj.(interface{ NumFeatures() int }); ok {
			fmt.Fprintf(out, "  %s: expects %d features\n", o.modelName, m.NumFeatures())
			if width >= 0 && m.NumFeatures() != width {
				fmt.Fprintf(out, "  warning: preprocessor emits %d features, model expects %d\n", width, m.NumFeatures())
			}
		}
	}
}

func checkServer(out io.Writer, client httputil.HTTPClient, base string) bool {
	fmt.Fprintf(out, "\nServer %s:\n", base)

	var health inference.Health
	status, err := httputil.GetJSON(client, base+"/health", &health)
	switch {
	case err != nil:
		fmt.Fprintf(out, "✗ /health: %v\n", err)
		return false
	case status != http.StatusOK:
		fmt.Fprintf(out, "✗ /health returned %d (%s)\n", status, health.Status)
		return false
	}
	fmt.Fprintf(out, "✓ /health %s\n", health.Status)

	var pred struct {
		RequestID  string  `json:"request_id"`
		Prediction float64 `json:"prediction"`
	}
	status, err = httputil.PostJSON(client, base+"/api/predict", fixtures.SampleInput(), &pred)
	switch {
	case err != nil:
		fmt.Fprintf(out, "✗ /api/predict: %v\n", err)
		return false
	case status != http.StatusOK:
		fmt.Fprintf(out, "✗ /api/predict returned %d\n", status)
		return false
	}
	fmt.Fprintf(out, "✓ /api/predict %g (request %s)\n", pred.Prediction, pred.RequestID)
	return true
}
