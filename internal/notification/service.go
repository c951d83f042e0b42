package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	authRepo "eventscout-backend/internal/auth/repository"
	"eventscout-backend/internal/pipeline/queue"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes to the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Enqueuer lets the listener hand work to the pipeline queue.
type Enqueuer interface {
	Enqueue(job queue.Job) bool
}

// Service listens on the Pub/Sub subscription fed by Gmail watch and
// enqueues a sync job for the affected user. The periodic scheduler
// still runs underneath it; push just shortens the latency between an
// email arriving and its event landing on the calendar.
type Service struct {
	pubsubClient *pubsub.Client
	userRepo     authRepo.UserRepository
	jobs         Enqueuer
	topicName    string
	subName      string
	maxResults   int

	// Gmail redelivers aggressively; track the last historyId per user
	// so a burst of duplicates becomes one sync job.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName, credentialsFile string, userRepo authRepo.UserRepository, jobs Enqueuer, maxResults int) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:  client,
		userRepo:      userRepo,
		jobs:          jobs,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		maxResults:    maxResults,
		lastHistoryID: make(map[string]uint64),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification listener with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(data []byte) {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return
	}

	user, err := s.userRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error finding user by email %s: %v", notification.EmailAddress, err)
		return
	}
	if user == nil {
		log.Printf("[PubSub] User not found for email: %s", notification.EmailAddress)
		return
	}

	if !s.markSeen(user.ID, notification.HistoryID) {
		return
	}

	log.Printf("[PubSub] Notification for %s (historyId %d), enqueueing sync", notification.EmailAddress, notification.HistoryID)
	s.jobs.Enqueue(queue.Job{
		Kind:       queue.KindSyncInbox,
		UserID:     user.ID,
		MaxResults: s.maxResults,
	})
}

// markSeen records the historyId and reports whether it is new.
func (s *Service) markSeen(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}
