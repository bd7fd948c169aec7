package engine

import (
	"github.com/pangaea-engine/pangaea/engine/assets"
	"github.com/pangaea-engine/pangaea/engine/core"
	"github.com/pangaea-engine/pangaea/engine/platform"
	"github.com/pangaea-engine/pangaea/engine/renderer"
	"github.com/pangaea-engine/pangaea/engine/renderer/vulkan"
)

// Application owns the window, the renderer backend and the frame loop.
type Application struct {
	config    Config
	platform  *platform.Platform
	backend   *vulkan.VulkanRenderer
	scheduler *renderer.FrameScheduler
	shaders   *assets.ShaderStore
	watcher   *assets.ShaderWatcher

	clock *core.Clock
}

func NewApplication(config Config) (*Application, error) {
	level, err := config.LogLevel()
	if err != nil {
		return nil, err
	}
	core.SetLogLevel(level)

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Application{
		config:   config,
		platform: p,
		shaders:  assets.NewShaderStore(config.Renderer.ShaderDir),
		clock:    core.NewClock(),
	}, nil
}

// Shaders exposes the application's shader store, e.g. for pipeline setup in
// the render callbacks.
func (app *Application) Shaders() *assets.ShaderStore {
	return app.shaders
}

// Backend exposes the renderer for callback registration before Run.
func (app *Application) Backend() *vulkan.VulkanRenderer {
	return app.backend
}

// Initialize brings up the window and the renderer. Must be called from the
// main goroutine.
func (app *Application) Initialize() error {
	if err := app.platform.Startup(
		app.config.Window.Title,
		app.config.Window.X,
		app.config.Window.Y,
		app.config.Window.Width,
		app.config.Window.Height); err != nil {
		return err
	}

	app.backend = vulkan.New(app.platform, app.config.Renderer.Debug, app.config.Renderer.VSync, app.config.Renderer.PipelineCacheDir)
	if err := app.backend.Initialize(app.config.Window.Title, app.config.Window.Width, app.config.Window.Height); err != nil {
		return err
	}

	app.scheduler = renderer.NewFrameScheduler(app.backend, app.platform)

	if app.config.Renderer.WatchShaders {
		watcher, err := assets.NewShaderWatcher(app.shaders)
		if err != nil {
			// Hot reload is a development convenience, not a requirement.
			core.LogWarn("shader watching disabled: %v", err)
		} else {
			app.watcher = watcher
		}
	}

	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	return nil
}

// Run drives the frame loop until the window is closed or a fatal render
// error occurs.
func (app *Application) Run() error {
	app.clock.Start()
	app.clock.Update()
	lastTime := app.clock.ElapsedSeconds()

	for !app.platform.ShouldClose() {
		app.platform.PumpMessages()

		app.clock.Update()
		now := app.clock.ElapsedSeconds()
		deltaTime := now - lastTime
		lastTime = now

		app.drainShaderChanges()

		if err := app.scheduler.DrawFrame(deltaTime); err != nil {
			core.LogError("frame loop stopped: %v", err)
			return err
		}

		core.MetricsUpdate(deltaTime)
	}

	fps, frameTime := core.MetricsFrame()
	core.LogInfo("Shutting down after %d frames (%.0f fps, %.2f ms avg).", app.scheduler.FrameNumber, fps, frameTime)
	return nil
}

func (app *Application) drainShaderChanges() {
	if app.watcher == nil {
		return
	}
	for {
		select {
		case name, ok := <-app.watcher.Changed():
			if !ok {
				app.watcher = nil
				return
			}
			core.LogInfo("Shader %q updated; pipelines using it rebuild on next load.", name)
		default:
			return
		}
	}
}

// Shutdown tears everything down in reverse initialization order.
func (app *Application) Shutdown() error {
	if app.watcher != nil {
		app.watcher.Close()
		app.watcher = nil
	}
	if app.backend != nil {
		if err := app.backend.Shutdown(); err != nil {
			return err
		}
		app.backend = nil
	}
	return app.platform.Shutdown()
}
