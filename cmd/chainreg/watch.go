package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/client"
	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow workflow progress, notifications and reconciles",
	GroupID: "notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		since, _ := cmd.Flags().GetUint64("since")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, topics)
		}
		return crClient.StreamEvents(ctx, &client.StreamRequest{Topics: topics, LastEventID: since}, func(ev client.Event) error {
			printEvent(ev.Topic, ev.Data)
			return nil
		})
	},
}

// watchNATS follows events straight from the bus, bypassing the server.
func watchNATS(ctx context.Context, natsURL string, topics []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	// Payloads arrive without their subject, so subscribe per topic to
	// keep them labelled.
	if len(topics) == 0 {
		topics = allTopics
	}
	type message struct {
		topic string
		data  []byte
	}
	merged := make(chan message)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		go func() {
			for data := range ch {
				select {
				case merged <- message{topic: topic, data: data}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-merged:
			printEvent(m.topic, m.data)
		}
	}
}

var allTopics = []string{
	events.TopicWorkflowTransitioned,
	events.TopicWorkflowReported,
	events.TopicNotificationPushed,
	events.TopicNotificationDismissed,
	events.TopicNotificationExpired,
	events.TopicReconcileCompleted,
}

func printEvent(topic string, data []byte) {
	if jsonOutput {
		fmt.Printf("{\"topic\":%q,\"data\":%s}\n", topic, strings.TrimSpace(string(data)))
		return
	}
	fmt.Printf("%s  %-32s %s\n", style.Muted(time.Now().Format(time.TimeOnly)), topic, describeEvent(topic, data))
}

// describeEvent renders a one-line summary of an event payload. Unknown
// topics and undecodable payloads are shown raw.
func describeEvent(topic string, data []byte) string {
	raw := strings.TrimSpace(string(data))
	switch {
	case strings.HasSuffix(topic, ".workflow.transitioned"):
		var ev events.WorkflowTransitioned
		if json.Unmarshal(data, &ev) != nil {
			return raw
		}
		return fmt.Sprintf("%s %s → %s: %s", ev.RunID, ev.Workflow, ev.To, ev.Status)
	case strings.HasSuffix(topic, ".workflow.reported"):
		var ev events.WorkflowReported
		if json.Unmarshal(data, &ev) != nil || ev.Run == nil {
			return raw
		}
		s := fmt.Sprintf("%s %s %s", ev.Run.ID, ev.Run.Workflow, style.Outcome(ev.Run.Outcome))
		if ev.Run.TxID != "" {
			s += " tx " + ev.Run.TxID
		}
		if ev.Run.Error != "" {
			s += ": " + ev.Run.Error
		}
		return s
	case strings.HasSuffix(topic, ".notification.pushed"):
		var ev events.NotificationPushed
		if json.Unmarshal(data, &ev) != nil {
			return raw
		}
		n := ev.Notification
		return fmt.Sprintf("%s %s: %s", style.Kind(n.Kind), n.Title, n.Message)
	case strings.HasSuffix(topic, ".notification.dismissed"), strings.HasSuffix(topic, ".notification.expired"):
		var ev events.NotificationExpired
		if json.Unmarshal(data, &ev) != nil {
			return raw
		}
		return fmt.Sprintf("notification %d", ev.ID)
	case strings.HasSuffix(topic, ".reconcile.completed"):
		var ev events.ReconcileCompleted
		if json.Unmarshal(data, &ev) != nil {
			return raw
		}
		if ev.Error != "" {
			return style.Warn("failed: " + ev.Error)
		}
		return fmt.Sprintf("%d assets, %d events, %d tickets at %s in %s",
			ev.Assets, ev.Events, ev.Tickets, style.Height(ev.Height, ev.HeightEstimated), ev.Duration)
	}
	return raw
}

func init() {
	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to follow, e.g. chainreg.workflow.> (default all)")
	watchCmd.Flags().String("nats", os.Getenv("CHAINREG_NATS_URL"), "read from this NATS server instead of the chainreg server")
	watchCmd.Flags().Uint64("since", 0, "replay buffered events after this event id")
}
