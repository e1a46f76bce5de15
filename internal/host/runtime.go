package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joeycumines/testable/internal/effect"
	"github.com/joeycumines/testable/internal/task"
)

// PortHandler receives values sent out through a port command.
type PortHandler func(value any)

// Root is the environment an application is embedded into. All fields are
// optional: Input and Output default to os.Stdin and os.Stdout, Logger to
// slog.Default().
type Root struct {
	Context context.Context
	Input   io.Reader
	Output  io.Writer
	// Ports maps outbound port names to handlers. Commands for ports without
	// a handler are dropped.
	Ports   map[string]PortHandler
	Logger  *slog.Logger
	Options []tea.ProgramOption
}

// Start is the real Initializer: embedding its Module runs the application
// in a bubbletea program. A panic in init is returned from Embed as an
// *AppError; later application panics are logged and the model is kept.
func Start(init InitFunc, update UpdateFunc, subscriptions SubscriptionsFunc, view ViewFunc) Module {
	return ModuleFunc(func(root Root, flags any) (App, error) {
		if init == nil || update == nil {
			return nil, fmt.Errorf("application requires init and update")
		}
		rt, err := run(root, flags, init, update, subscriptions, view)
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}

// Runtime is a running application.
type Runtime struct {
	id      string
	program *tea.Program
	logger  *slog.Logger
	done    chan struct{}
	final   any
	err     error
}

// ID returns the runtime's unique identifier.
func (r *Runtime) ID() string { return r.id }

// Dispatch delivers msg to the application's update function. It blocks until
// the loop accepts the message or stops.
func (r *Runtime) Dispatch(msg any) {
	r.program.Send(appMsg{msg: msg})
}

// Send delivers value to the application through the inbound port name. It
// reaches update once per active subscription to that port.
func (r *Runtime) Send(port string, value any) {
	r.program.Send(portMsg{port: port, value: value})
}

// Quit asks the loop to stop.
func (r *Runtime) Quit() {
	r.program.Quit()
}

// Wait blocks until the loop stops and returns the final model.
func (r *Runtime) Wait() (any, error) {
	<-r.done
	return r.final, r.err
}

// Done is closed once the loop has stopped.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func run(root Root, flags any, init InitFunc, update UpdateFunc, subscriptions SubscriptionsFunc, view ViewFunc) (*Runtime, error) {
	ctx := root.Context
	if ctx == nil {
		ctx = context.Background()
	}
	input := root.Input
	if input == nil {
		input = os.Stdin
	}
	output := root.Output
	if output == nil {
		output = os.Stdout
	}
	r := &Runtime{
		id:     uuid.NewString(),
		done:   make(chan struct{}),
		logger: root.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("runtime", r.id)

	model, cmds, err := initialize(init, flags)
	if err != nil {
		r.logger.Error("[Runtime] init failed", "error", err)
		return nil, err
	}
	m := &teaModel{
		model:         model,
		initCmds:      cmds,
		update:        update,
		subscriptions: subscriptions,
		view:          view,
		ports:         root.Ports,
		logger:        r.logger,
	}

	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(output),
	}
	opts = append(opts, root.Options...)
	r.program = tea.NewProgram(m, opts...)

	go func() {
		defer close(r.done)
		final, err := r.program.Run()
		if fm, ok := final.(*teaModel); ok && fm != nil {
			r.final = fm.model
		} else {
			r.final = m.model
		}
		if err != nil {
			r.err = fmt.Errorf("failed to run program: %w", err)
		}
		r.logger.Debug("[Runtime] stopped", "error", err)
	}()

	return r, nil
}

func initialize(init InitFunc, flags any) (model any, cmds effect.Tree, err error) {
	defer Recover("init", &err)
	model, cmds = init(flags)
	return model, cmds, nil
}

// appMsg carries an application message through the bubbletea loop.
type appMsg struct {
	msg any
}

// portMsg carries a value arriving on an inbound port.
type portMsg struct {
	port  string
	value any
}

// teaModel adapts an application to tea.Model. It is only touched from the
// bubbletea event loop goroutine.
type teaModel struct {
	model         any
	initCmds      effect.Tree
	update        UpdateFunc
	subscriptions SubscriptionsFunc
	view          ViewFunc
	ports         map[string]PortHandler
	logger        *slog.Logger

	active []effect.Subscription
}

// Init implements tea.Model.
func (m *teaModel) Init() tea.Cmd {
	m.refreshSubscriptions()
	cmd := m.toCmd(m.initCmds)
	m.initCmds = nil
	return cmd
}

// Update implements tea.Model.
func (m *teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appMsg:
		return m, m.apply(msg.msg)
	case portMsg:
		var cmds []tea.Cmd
		for _, sub := range m.active {
			if sub.Port != msg.port {
				continue
			}
			tagger, ok := sub.Tagger()
			if !ok {
				m.logger.Warn("[Runtime] subscription has no tagger", "port", sub.Port)
				continue
			}
			value, err := mapPort(tagger, msg.value)
			if err != nil {
				m.logger.Error("[Runtime] port mapper failed", "port", sub.Port, "error", err)
				continue
			}
			cmds = append(cmds, m.apply(value))
		}
		if len(cmds) == 0 {
			m.logger.Debug("[Runtime] no subscription for port", "port", msg.port)
			return m, nil
		}
		return m, tea.Sequence(cmds...)
	}
	return m, nil
}

// View implements tea.Model.
func (m *teaModel) View() string {
	if m.view == nil {
		return ""
	}
	return m.view(m.model)
}

// apply runs update. If the application panics the model is kept and no
// commands run.
func (m *teaModel) apply(msg any) tea.Cmd {
	model, cmds, err := m.step(msg)
	if err != nil {
		m.logger.Error("[Runtime] update failed", "error", err)
		return nil
	}
	m.model = model
	m.refreshSubscriptions()
	return m.toCmd(cmds)
}

func (m *teaModel) step(msg any) (model any, cmds effect.Tree, err error) {
	defer Recover("update", &err)
	model, cmds = m.update(msg, m.model)
	return model, cmds, nil
}

func mapPort(tagger effect.Tagger, value any) (msg any, err error) {
	defer Recover("port mapper", &err)
	return tagger(value), nil
}

func (m *teaModel) currentSubscriptions() (tree effect.Tree, err error) {
	defer Recover("subscriptions", &err)
	return m.subscriptions(m.model), nil
}

func (m *teaModel) refreshSubscriptions() {
	if m.subscriptions == nil {
		return
	}
	tree, err := m.currentSubscriptions()
	if err != nil {
		m.logger.Error("[Runtime] subscriptions failed", "error", err)
		return
	}
	subs, err := effect.ExtractSubs(tree)
	if err != nil {
		m.logger.Error("[Runtime] invalid subscriptions", "error", err)
		return
	}
	m.active = subs
}

// toCmd converts a command tree into a tea.Cmd that runs each command in
// tree order.
func (m *teaModel) toCmd(tree effect.Tree) tea.Cmd {
	commands, err := effect.ExtractCmds(tree)
	if err != nil {
		m.logger.Error("[Runtime] dropping command tree", "error", err)
		return nil
	}
	var cmds []tea.Cmd
	for _, c := range commands {
		if cmd := m.commandToCmd(c); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Sequence(cmds...)
	}
}

func (m *teaModel) commandToCmd(c effect.Command) tea.Cmd {
	switch c := c.(type) {
	case effect.TaskCommand:
		return func() tea.Msg {
			out, err := task.Run(c.Task)
			if err != nil {
				m.logger.Error("[Runtime] task failed to evaluate", "error", err)
				return nil
			}
			if v, ok := out.Value(); ok {
				return appMsg{msg: v}
			}
			e, _ := out.Error()
			m.logger.Warn("[Runtime] task failed", "error", fmt.Sprint(e))
			return nil
		}
	case effect.PortCommand:
		handler := m.ports[c.Port]
		if handler == nil {
			m.logger.Debug("[Runtime] no handler for port", "port", c.Port)
			return nil
		}
		value := c.Value
		return func() tea.Msg {
			handler(value)
			return nil
		}
	}
	return nil
}
