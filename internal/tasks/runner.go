package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/themebuilder/internal/config"
	"git.home.luguber.info/inful/themebuilder/internal/devserver"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/logfields"
	"git.home.luguber.info/inful/themebuilder/internal/metrics"
	"git.home.luguber.info/inful/themebuilder/internal/pack"
	"git.home.luguber.info/inful/themebuilder/internal/pipeline"
	"git.home.luguber.info/inful/themebuilder/internal/registry"
	"git.home.luguber.info/inful/themebuilder/internal/reload"
	"git.home.luguber.info/inful/themebuilder/internal/sass"
	"git.home.luguber.info/inful/themebuilder/internal/taskgraph"
	"git.home.luguber.info/inful/themebuilder/internal/watcher"
)

// Task names.
const (
	Clean    = "clean"
	Styles   = "styles"
	Scripts  = "scripts"
	Images   = "images"
	Copy     = "copy"
	Build    = "build"
	Serve    = "serve"
	Watch    = "watch"
	Dev      = "dev"
	Compress = "compress"
	Bundle   = "bundle"
)

// compositions run with their dependencies; every other task runs alone.
var compositions = map[string]bool{Dev: true, Build: true, Bundle: true}

// IsComposition reports whether name runs together with its dependencies.
func IsComposition(name string) bool { return compositions[name] }

// Options configures a Runner.
type Options struct {
	// Root is the absolute project root.
	Root   string
	Config *config.Config
	Mode   pipeline.Mode
	// Sass defaults to the Dart Sass binary named in the configuration.
	Sass sass.Compiler
	// Recorder defaults to a Prometheus recorder when server.metrics is set
	// and to a no-op recorder otherwise.
	Recorder metrics.Recorder
}

// Runner owns the task graph and the long-lived collaborators its tasks share.
type Runner struct {
	opts     Options
	registry *registry.Registry
	server   *devserver.Server
	notifier reload.Notifier
	graph    *taskgraph.Graph
	ownsSass bool
}

// New resolves the registry and the dev server and registers all tasks.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, ferrors.InternalError("task runner needs a configuration").Build()
	}
	if !filepath.IsAbs(opts.Root) {
		abs, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, ferrors.FileSystemError("resolve project root").WithCause(err).Build()
		}
		opts.Root = abs
	}

	reg, err := registry.FromConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	var metricsHandler http.Handler
	if opts.Recorder == nil && opts.Config.Server.Metrics {
		promReg := prom.NewRegistry()
		opts.Recorder = metrics.NewPrometheusRecorder(promReg)
		metricsHandler = metrics.HTTPHandler(promReg)
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)

	r := &Runner{opts: opts, registry: reg}
	if r.opts.Sass == nil {
		r.opts.Sass = sass.NewDartSass(opts.Config.Styles.SassBinary)
		r.ownsSass = true
	}

	r.server, err = devserver.New(devserver.Options{
		Upstream:  opts.Config.Server.Proxy,
		Host:      opts.Config.Server.Host,
		Port:      opts.Config.Server.Port,
		OutputDir: filepath.Join(opts.Root, filepath.FromSlash(opts.Config.Output)),
		ServeDist: opts.Config.Server.ServeDist,
		Recorder:  opts.Recorder,
		Metrics:   metricsHandler,
	})
	if err != nil {
		return nil, err
	}
	r.notifier = r.server

	r.graph, err = taskgraph.New(r.tasks()...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "register tasks").Fatal().Build()
	}
	return r, nil
}

func (r *Runner) tasks() []taskgraph.Task {
	return []taskgraph.Task{
		{Name: Clean, Description: "remove the output directory", Run: r.clean},
		{Name: Styles, Description: "compile, prefix and write stylesheets", Deps: []string{Clean}, Run: r.pipeline(Styles, pipeline.Styles)},
		{Name: Scripts, Description: "bundle script entry points", Deps: []string{Clean}, Run: r.pipeline(Scripts, pipeline.Scripts)},
		{Name: Images, Description: "copy images, optimized in production", Deps: []string{Clean}, Run: r.pipeline(Images, pipeline.Images)},
		{Name: Copy, Description: "copy the remaining assets", Deps: []string{Clean}, Run: r.pipeline(Copy, pipeline.Copy)},
		{Name: Build, Description: "full asset build", Deps: []string{Styles, Scripts, Images, Copy}, Run: nop},
		{Name: Serve, Description: "start the development proxy", Deps: []string{Build}, Run: r.serve},
		{Name: Watch, Description: "rebuild and reload on changes", Deps: []string{Serve}, Run: r.watch},
		{Name: Dev, Description: "build, serve and watch", Deps: []string{Watch}, Run: nop},
		{Name: Compress, Description: "write the theme archive", Run: r.compress},
		{Name: Bundle, Description: "full asset build followed by the theme archive", Deps: []string{Build}, Run: r.compress},
	}
}

func nop(context.Context) error { return nil }

// Graph returns the registered task graph.
func (r *Runner) Graph() *taskgraph.Graph { return r.graph }

// Registry returns the resolved path registry.
func (r *Runner) Registry() *registry.Registry { return r.registry }

// Server returns the dev server used by the serve and watch tasks.
func (r *Runner) Server() *devserver.Server { return r.server }

// Run executes target. Compositions run with their dependencies; any other
// task runs on its own.
func (r *Runner) Run(ctx context.Context, target string) error {
	t, ok := r.graph.Task(target)
	if !ok {
		return ferrors.ValidationError(fmt.Sprintf("unknown task %q", target)).
			WithContext("tasks", r.graph.Names()).Build()
	}

	g := r.graph
	if !IsComposition(target) {
		single := t
		single.Deps = nil
		var err error
		if g, err = taskgraph.New(single); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "prepare task").Fatal().Build()
		}
	}

	buildID := uuid.NewString()
	obs := &observer{buildID: buildID, recorder: r.opts.Recorder}
	slog.Info("Starting",
		logfields.Task(target),
		logfields.BuildID(buildID),
		logfields.Mode(r.opts.Mode.String()))

	report, err := taskgraph.Run(ctx, g, obs, target)
	if report != nil {
		r.opts.Recorder.ObserveRunDuration(target, report.Duration)
	}
	if err == nil && target == Serve {
		// serve on its own keeps proxying until interrupted.
		<-ctx.Done()
		return nil
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) && report != nil && len(report.Failed()) == 0 {
			slog.Info("Stopped", logfields.Task(target), logfields.BuildID(buildID))
			return nil
		}
		return err
	}
	slog.Info("Finished",
		logfields.Task(target),
		logfields.BuildID(buildID),
		logfields.Duration(report.Duration))
	return nil
}

// Close releases the Sass compiler when the runner started it.
func (r *Runner) Close() error {
	if r.ownsSass && r.opts.Sass != nil {
		return r.opts.Sass.Close()
	}
	return nil
}

// WriteGraph prints the task graph in format "text" or "mermaid".
func (r *Runner) WriteGraph(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.graph.WriteText(w)
	case "mermaid":
		return r.graph.WriteMermaid(w)
	default:
		return ferrors.ValidationError(fmt.Sprintf("unknown graph format %q", format)).Build()
	}
}

func (r *Runner) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Root:     r.opts.Root,
		Mode:     r.opts.Mode,
		Config:   r.opts.Config,
		Registry: r.registry,
		Sass:     r.opts.Sass,
		Recorder: r.opts.Recorder,
		Notifier: r.notifier,
	}
}

func (r *Runner) clean(ctx context.Context) error {
	return pipeline.Clean(ctx, r.pipelineOptions())
}

// pipeline adapts f to a task. A classified error is tagged with the task name.
func (r *Runner) pipeline(task string, f pipeline.Func) taskgraph.Func {
	return func(ctx context.Context) error {
		_, err := f(ctx, r.pipelineOptions())
		if ce, ok := err.(*ferrors.ClassifiedError); ok {
			return ce.WithContext("task", task)
		}
		return err
	}
}

func (r *Runner) serve(ctx context.Context) error {
	return r.server.Start(ctx)
}

func (r *Runner) watch(ctx context.Context) error {
	if missing, err := r.registry.Uncovered(os.DirFS(r.opts.Root)); err != nil {
		slog.Warn("Could not check watch coverage", logfields.Error(err))
	} else if len(missing) > 0 {
		slog.Warn("Source files not covered by any watch pattern", slog.Any("files", missing))
	}
	slog.Debug("Watch directories", slog.Any("dirs", r.registry.WatchDirs()))

	w, err := watcher.New(watcher.Options{
		Root:     r.opts.Root,
		Registry: r.registry,
		Action:   r.rebuild,
		Debounce: r.opts.Config.Watch.Debounce,
		Ignore:   r.opts.Config.Watch.Ignore,
		Skip:     []string{r.opts.Config.Output, r.opts.Config.Package.Dir},
	})
	if err != nil {
		return err
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// rebuild is the watcher action: run the group's pipeline and refresh the
// browsers. Stylesheets are pushed by the style pipeline itself.
func (r *Runner) rebuild(ctx context.Context, group string) error {
	start := time.Now()
	defer func() { r.opts.Recorder.ObserveRunDuration("watch:"+group, time.Since(start)) }()

	if group == registry.Templates {
		r.notifier.Reload(reload.Page)
		return nil
	}
	f, ok := pipeline.ForGroup(group)
	if !ok {
		return nil
	}
	report, err := f(ctx, r.pipelineOptions())
	if err != nil {
		return err
	}
	if group != registry.Styles {
		r.notifier.Reload(reload.Page, report.Written...)
	}
	return nil
}

func (r *Runner) compress(ctx context.Context) error {
	_, err := pack.Compress(ctx, pack.Options{Root: r.opts.Root, Config: r.opts.Config})
	return err
}
