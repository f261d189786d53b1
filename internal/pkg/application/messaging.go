package application

import (
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/niper/niper-map/internal/pkg/domain"
)

const (
	TopicRegionCreated string = "niper.region.created"
	TopicRegionRemoved string = "niper.region.removed"
	TopicRegionsClear  string = "niper.region.cleared"
)

//TopicPublisher is the part of messaging.MsgContext used to announce changes
type TopicPublisher interface {
	PublishOnTopic(message messaging.TopicMessage) error
}

//RegionEvent is published on a topic after every successful mutation
type RegionEvent struct {
	EventID   string         `json:"eventId"`
	Topic     string         `json:"-"`
	Region    *domain.Region `json:"region,omitempty"`
	RegionID  int64          `json:"regionId,omitempty"`
	Remaining int            `json:"remaining"`
	Timestamp string         `json:"timestamp"`
}

func (e *RegionEvent) ContentType() string {
	return "application/vnd.niper.region-event+json"
}

func (e *RegionEvent) TopicName() string {
	return e.Topic
}

//RegionEvents publishes region changes. A nil publisher disables publishing.
type RegionEvents struct {
	pub TopicPublisher
	log zerolog.Logger
}

func NewRegionEvents(pub TopicPublisher, log zerolog.Logger) *RegionEvents {
	return &RegionEvents{pub: pub, log: log}
}

func (re *RegionEvents) Created(region domain.Region, remaining int) {
	re.publish(&RegionEvent{Topic: TopicRegionCreated, Region: &region, RegionID: region.ID, Remaining: remaining})
}

func (re *RegionEvents) Removed(id int64, remaining int) {
	re.publish(&RegionEvent{Topic: TopicRegionRemoved, RegionID: id, Remaining: remaining})
}

func (re *RegionEvents) Cleared() {
	re.publish(&RegionEvent{Topic: TopicRegionsClear})
}

func (re *RegionEvents) publish(evt *RegionEvent) {
	if re == nil || re.pub == nil {
		return
	}

	evt.EventID = uuid.NewString()
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if err := re.pub.PublishOnTopic(evt); err != nil {
		// the store is already updated, so a lost event is only logged
		re.log.Error().Err(err).Str("topic", evt.Topic).Msg("failed to publish region event")
		return
	}

	re.log.Debug().Str("topic", evt.Topic).Str("event", evt.EventID).Msg("region event published")
}
