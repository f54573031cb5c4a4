package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/crewplan/core/logger"
	"github.com/kilianp07/crewplan/core/model"
)

// ScheduleMessage is the payload sent to a worker when a window is booked.
type ScheduleMessage struct {
	NotificationID string    `json:"notification_id"`
	WorkerID       string    `json:"worker_id"`
	EventID        string    `json:"event_id"`
	TaskID         string    `json:"task_id,omitempty"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	TaskCreated    bool      `json:"task_created"`
	Timestamp      int64     `json:"timestamp"`
}

// Notifier publishes booked windows on <prefix>/<worker>/schedule.
type Notifier struct {
	pub    Publisher
	prefix string
	log    logger.Logger
	now    func() time.Time
}

// NewNotifier creates a Notifier over pub. An empty prefix defaults to "crew".
func NewNotifier(pub Publisher, prefix string, log logger.Logger) *Notifier {
	if prefix == "" {
		prefix = "crew"
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Notifier{pub: pub, prefix: strings.TrimRight(prefix, "/"), log: log, now: time.Now}
}

// ScheduleTopic returns the topic a worker listens to.
func ScheduleTopic(prefix, workerID string) string {
	return fmt.Sprintf("%s/%s/schedule", prefix, topicSafe(workerID))
}

// topicSafe lower-cases id and replaces characters MQTT reserves in topic levels.
func topicSafe(id string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(strings.ToLower(id))
}

// NotifyScheduled publishes res to the worker's schedule topic.
func (n *Notifier) NotifyScheduled(ctx context.Context, workerID string, res model.SchedulingResult) error {
	msg := ScheduleMessage{
		NotificationID: uuid.NewString(),
		WorkerID:       workerID,
		EventID:        res.Event.ID,
		TaskID:         res.Event.TaskID,
		Title:          res.Event.Title,
		Start:          res.Event.Start,
		End:            res.Event.End,
		TaskCreated:    res.TaskCreated,
		Timestamp:      n.now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := ScheduleTopic(n.prefix, workerID)
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	n.log.Infof("sent schedule %s to %s", msg.NotificationID, topic)
	return nil
}
