package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivatePairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PrivatePairKey("a", "b"), PrivatePairKey("b", "a"))
	assert.Equal(t, "a:b", PrivatePairKey("b", "a"))
}

func TestMessageSentBy(t *testing.T) {
	alice := "alice"
	m := Message{SenderID: &alice}
	assert.True(t, m.SentBy("alice"))
	assert.False(t, m.SentBy("bob"))

	orphan := Message{}
	assert.False(t, orphan.SentBy("alice"))
}
