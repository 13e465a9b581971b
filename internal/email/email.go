package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/carpool/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.NotificationEvent) error {
	fmt.Printf("send %s notification to user %s: %s - %s\n", event.Type, event.UserID, event.Title, event.Message)
	return nil
}
