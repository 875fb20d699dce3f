package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakePage is an in-memory Page for engine tests. Selector visibility is a
// map; a positive notYetVisible counter makes a selector appear only after
// that many probes, which models "signal shows up later".
type fakePage struct {
	mu            sync.Mutex
	visible       map[string]bool
	notYetVisible map[string]int
	values        map[string]string
	clicks        []string

	// dropOnSet strips digits on SetValue to force input escalation.
	dropOnSet bool
	// failSendKeys makes the keystroke method unusable too.
	failSendKeys bool
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:       map[string]bool{},
		notYetVisible: map[string]int{},
		values:        map[string]string{},
	}
}

var errNotVisible = errors.New("not visible")

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.notYetVisible[selector]; ok {
		if n > 0 {
			p.notYetVisible[selector] = n - 1
			return errNotVisible
		}
		return nil
	}
	if p.visible[selector] {
		return nil
	}
	return errNotVisible
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) ClickWithin(ctx context.Context, containerSel, containsText, targetSel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[containerSel] {
		return errNotVisible
	}
	p.clicks = append(p.clicks, containerSel+">"+targetSel)
	return nil
}

func (p *fakePage) SetValue(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dropOnSet {
		value = strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return -1
			}
			return r
		}, value)
	}
	p.values[selector] = value
	return nil
}

func (p *fakePage) SendKeys(ctx context.Context, selector, value string) error {
	if p.failSendKeys {
		return errors.New("keystrokes rejected")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = value
	return nil
}

func (p *fakePage) ScriptSetValue(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[selector] = value
	return nil
}

func (p *fakePage) Value(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector], nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *fakePage) clicked(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clicks {
		if c == selector {
			return true
		}
	}
	return false
}
