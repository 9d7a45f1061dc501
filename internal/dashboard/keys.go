package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start     key.Binding
	Stop      key.Binding
	RunOnce   key.Binding
	Terminal  key.Binding
	Reconnect key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Start:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		RunOnce:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run once")),
		Terminal:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "terminal")),
		Reconnect: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "reconnect")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// sync enables bindings to match the current controls.
func (k *keyMap) sync(c ControlState) {
	k.Start.SetEnabled(c.StartEnabled)
	k.Stop.SetEnabled(c.StopEnabled)
	k.RunOnce.SetEnabled(c.RunOnceEnabled)
}
