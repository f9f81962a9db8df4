package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tech4loop/marketplace-backend/pkg/config"
)

func TestTopicNamesDeduplicates(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: " t4l-events ", StockTopic: "t4l-events"})
	assert.Equal(t, []string{"t4l-events"}, names)

	assert.Empty(t, topicNames(config.PubSubConfig{}))
}

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/orders", topicResourceName("p1", "orders"))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("p1", "projects/other/topics/x"))
	assert.Empty(t, topicResourceName("", "orders"))
	assert.Empty(t, topicResourceName("p1", " "))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("orders"))
	assert.NoError(t, c.Close())
}
