package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pangaea-engine/pangaea/engine/containers"
	"github.com/pangaea-engine/pangaea/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// ResizeEvent carries the new framebuffer size reported by the window system.
type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type Platform struct {
	Window *glfw.Window

	// Resize notifications delivered by the framebuffer size callback.
	// Drained once per frame by ConsumeResize.
	resizeEvents *containers.RingQueue[ResizeEvent]
}

func New() (*Platform, error) {
	return &Platform{
		Window:       nil,
		resizeEvents: containers.NewRingQueue[ResizeEvent](64),
	}, nil
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		// Oldest events are dropped when the queue overflows; only the most
		// recent size matters to the renderer.
		if p.resizeEvents.IsFull() {
			p.resizeEvents.Dequeue()
		}
		p.resizeEvents.Enqueue(ResizeEvent{Width: uint32(width), Height: uint32(height)})
	})
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events without blocking.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one window event arrives. Used while the
// drawable size is zero (window minimized).
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

// DrawableSize returns the current framebuffer size in pixels.
func (p *Platform) DrawableSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// ConsumeResize reports whether a resize occurred since the last call and
// clears the pending notifications.
func (p *Platform) ConsumeResize() bool {
	resized := false
	for !p.resizeEvents.IsEmpty() {
		p.resizeEvents.Dequeue()
		resized = true
	}
	return resized
}

// ShouldClose reports whether the user requested the window to close.
func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// RequiredExtensions returns the instance extensions the window system needs.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}
