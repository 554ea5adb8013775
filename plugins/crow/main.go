// Command crow is the reference operator plugin.
//
// Build it with:
//
//	go build -buildmode=plugin -o crow.so ./plugins/crow
package main

import (
	"log"
	"sync/atomic"

	"github.com/louisbranch/arkomp/pkg/event"
	"github.com/louisbranch/arkomp/pkg/operator"
)

var spawned atomic.Uint64

// New is resolved by the runtime as operator.ConstructorSymbol.
func New(id *string) (operator.Operator, error) {
	n := spawned.Add(1)
	name := "crow"
	if id != nil && *id != "" {
		name = *id
	}
	log.Printf("crow: spawned id=%q instance=%d", name, n)
	return &crow{id: name, skin: "default"}, nil
}

var _ operator.Constructor = New

type crow struct {
	id        string
	skin      string
	animation string
	pos       [2]float32
	target    [2]float32
	moving    bool
	frames    uint64
}

func (c *crow) ID() string { return c.id }

func (c *crow) StartAnimation(name string) {
	c.animation = name
}

func (c *crow) HandleEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindSetSkin:
		c.skin = ev.Skin
	case event.KindSetAnimation:
		c.StartAnimation(ev.Animation)
	case event.KindMoveTo:
		c.target = ev.Pos
		c.moving = true
		c.StartAnimation("Move")
	case event.KindSleep:
		c.moving = false
		c.StartAnimation("Sleep")
	case event.KindSit:
		c.moving = false
		c.StartAnimation("Sit")
	case event.KindRetreat:
		c.moving = false
		c.StartAnimation("Die")
	default:
		log.Printf("crow: id=%q ignored event %s", c.id, ev)
	}
}

func (c *crow) Render(frame operator.Frame) {
	c.frames = frame.Number
}

// UpdateAnimation steps toward the move target, one unit per frame.
func (c *crow) UpdateAnimation(operator.Frame) {
	if !c.moving {
		return
	}
	for i := range c.pos {
		switch d := c.target[i] - c.pos[i]; {
		case d > 1:
			c.pos[i]++
		case d < -1:
			c.pos[i]--
		default:
			c.pos[i] = c.target[i]
		}
	}
	if c.pos == c.target {
		c.moving = false
		c.StartAnimation("Relax")
	}
}

func main() {}
