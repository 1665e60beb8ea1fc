package plot

// Container is the host surface a chart is mounted into
type Container interface {
	// Width returns the current client width of the container
	Width() int
	// ViewportWidth returns the width of the whole viewport, used for the mobile tier
	ViewportWidth() int
	// OnResize registers a listener for viewport resizes and returns its remover
	OnResize(fn func()) (remove func())
}

// resizeController keeps one instance's width in sync with its container and
// releases the instance on dispose
type resizeController struct {
	container Container
	instance  *Instance
	remove    func()
	onResize  func(*Instance)
}

func attachResize(container Container, instance *Instance, onResize func(*Instance)) *resizeController {
	c := &resizeController{
		container: container,
		instance:  instance,
		onResize:  onResize,
	}
	c.remove = container.OnResize(c.handleResize)
	return c
}

// handleResize updates the width only; height and series stay as constructed
func (c *resizeController) handleResize() {
	if c.instance == nil || c.instance.Removed() {
		return
	}

	width := c.container.Width()
	if width == c.instance.Width() {
		return
	}

	c.instance.applyWidth(width)
	if c.onResize != nil {
		c.onResize(c.instance)
	}
}

// Dispose removes the listener and releases the instance. It is safe on a nil
// controller and on repeated calls, and reports whether an instance was released.
func (c *resizeController) Dispose() bool {
	if c == nil {
		return false
	}

	if c.remove != nil {
		c.remove()
		c.remove = nil
	}

	if c.instance == nil {
		return false
	}

	released := c.instance.remove()
	c.instance = nil
	return released
}

// FixedContainer is a container that never resizes, used for off-screen rendering
type FixedContainer struct {
	W        int
	Viewport int
}

// NewFixedContainer creates a container of a constant width.
// A zero viewport means the viewport equals the container width.
func NewFixedContainer(width, viewport int) *FixedContainer {
	if viewport <= 0 {
		viewport = width
	}
	return &FixedContainer{W: width, Viewport: viewport}
}

func (f *FixedContainer) Width() int            { return f.W }
func (f *FixedContainer) ViewportWidth() int    { return f.Viewport }
func (f *FixedContainer) OnResize(func()) func() { return func() {} }
