package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishOrder(t *testing.T) {
	var b Bus[string]
	var got []string
	b.Subscribe(func(s string) { got = append(got, "a:"+s) })
	b.Subscribe(func(s string) { got = append(got, "b:"+s) })

	b.Publish("x")
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	var b Bus[int]
	count := 0
	unsub := b.Subscribe(func(int) { count++ })
	assert.Equal(t, 1, b.Len())

	b.Publish(1)
	unsub()
	unsub()
	b.Publish(2)

	assert.Equal(t, 1, count)
	assert.Zero(t, b.Len())
}

func TestBusUnsubscribeDuringPublish(t *testing.T) {
	var b Bus[int]
	var unsub func()
	calls := 0
	unsub = b.Subscribe(func(int) {
		calls++
		unsub()
	})
	b.Publish(1)
	b.Publish(2)
	assert.Equal(t, 1, calls)
}
