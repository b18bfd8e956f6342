package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quaylabs/mooring/errors"
	"github.com/quaylabs/mooring/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newReplCommand() *cobra.Command {
	var withWASI bool
	cmd := &cobra.Command{
		Use:   "repl <file.wasm>",
		Short: "Explore a module interactively",
		Long: `Open a terminal UI listing the module's exported functions. Pick one,
fill in its arguments and see the result or the trap it raised.`,
		Example: `  mooring repl calc.wasm`,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRepl(args[0], withWASI)
		},
	}
	cmd.Flags().BoolVar(&withWASI, "wasi", false, "make wasi_snapshot_preview1 importable")
	return cmd
}

func runRepl(filename string, withWASI bool) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("repl needs an interactive terminal")
	}
	p := tea.NewProgram(newReplModel(filename, withWASI), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type replModel struct {
	err      error
	env      *runtime.Environment
	rt       *runtime.Runtime
	module   *runtime.Module
	filename string
	withWASI bool
	result   string
	funcs    []replFunc
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    replState
}

type replFunc struct {
	name string
	sig  runtime.Signature
	fn   *runtime.Function
}

type replState int

const (
	stateSelectFunc replState = iota
	stateInputArgs
	stateShowResult
)

func newReplModel(filename string, withWASI bool) *replModel {
	return &replModel{
		filename: filename,
		withWASI: withWASI,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	env   *runtime.Environment
	rt    *runtime.Runtime
	mod   *runtime.Module
	funcs []replFunc
}

type callResultMsg struct {
	err    error
	result string
}

func (m *replModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *replModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	env, err := runtime.NewEnvironment(runtimeOptions()...)
	if err != nil {
		return loadedMsg{err: err}
	}
	rt, err := env.NewRuntime(ctx, cfg.Runtime.StackSlots)
	if err != nil {
		env.Close(ctx)
		return loadedMsg{err: err}
	}
	if m.withWASI {
		if err := rt.LinkWASI(); err != nil {
			rt.Close(ctx)
			env.Close(ctx)
			return loadedMsg{err: err}
		}
	}

	mod, err := rt.ParseAndLoadModule(ctx, data)
	if err != nil {
		rt.Close(ctx)
		env.Close(ctx)
		return loadedMsg{err: err}
	}

	// Only exports whose core types map onto scalars are callable here.
	var funcs []replFunc
	for _, f := range mod.ExportedFunctions() {
		sig, err := deriveSignature(mod, f.Name)
		if err != nil {
			continue
		}
		funcs = append(funcs, replFunc{name: f.Name, sig: sig})
	}

	return loadedMsg{env: env, rt: rt, mod: mod, funcs: funcs}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			if m.env != nil {
				m.env.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.env = msg.env
		m.rt = msg.rt
		m.module = msg.mod
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *replModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.sig.Params))
	for i, p := range f.sig.Params {
		ti := textinput.New()
		ti.Placeholder = witTypeStr(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *replModel) callFunction() tea.Msg {
	ctx := context.Background()
	f := m.funcs[m.selected]

	if f.fn == nil {
		fn, err := m.module.FindFunction(ctx, f.name, f.sig)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.funcs[m.selected].fn = fn
		f.fn = fn
	}

	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), f.sig.Params[i])
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	out, err := f.fn.Call(ctx, args...)
	if err != nil {
		if trap, ok := errors.AsTrap(err); ok {
			if detail, _, _ := strings.Cut(m.rt.ErrorInfo(), "\n"); detail != "" {
				return callResultMsg{err: fmt.Errorf("%w: %s", trap, detail)}
			}
			return callResultMsg{err: trap}
		}
		return callResultMsg{err: err}
	}

	results := make([]string, len(out))
	for i, v := range out {
		results[i] = formatResult(v, f.sig.Results[i])
	}
	if len(results) == 0 {
		return callResultMsg{result: "ok"}
	}
	return callResultMsg{result: strings.Join(results, ", ")}
}

func (m *replModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Mooring"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	if name := m.module.Name(); name != "" {
		b.WriteString(" (" + name + ")")
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("The module exports no callable functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(witTypeStr(f.sig.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *replModel) formatFunc(f replFunc) string {
	var params []string
	for i, p := range f.sig.Params {
		params = append(params, fmt.Sprintf("arg%d: %s", i, typeStyle.Render(witTypeStr(p))))
	}
	result := ""
	if len(f.sig.Results) > 0 {
		var types []string
		for _, r := range f.sig.Results {
			types = append(types, typeStyle.Render(witTypeStr(r)))
		}
		result = " -> " + strings.Join(types, ", ")
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}
