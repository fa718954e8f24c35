package services

import (
	"context"
	"fmt"
	"html/template"

	"github.com/onyxia-store/onyxia/app/models"
	"github.com/onyxia-store/onyxia/pkg/event"
	"github.com/onyxia-store/onyxia/pkg/mail"
	"github.com/onyxia-store/onyxia/pkg/ws"
)

var orderMailTmpl = template.Must(template.New("order_created").Parse(`<h2>New order #{{.ID}}</h2>
<p><strong>{{.CustomerName}}</strong> &middot; {{.PhoneNumber}} &middot; {{.City}}</p>
<p>Delivery: {{.DeliveryType}}{{if .DeliveryAddress}}, {{.DeliveryAddress}}{{end}}</p>
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}} &times; {{printf "%.2f" .Price}}</td></tr>
{{end}}</table>
<p>Subtotal {{printf "%.2f" .Subtotal}} + delivery {{printf "%.2f" .DeliveryFee}} = <strong>{{printf "%.2f" .Total}}</strong></p>`))

// Notifier publishes order events to the admin feed and by e-mail.
type Notifier struct {
	Hub        *ws.Hub
	Mailer     mail.Sender
	AdminEmail string
}

// Register attaches the listeners that have a destination configured.
func (n Notifier) Register(bus *event.Bus) {
	if n.Hub != nil {
		bus.Listen(EventOrderCreated, "ws", n.broadcast(EventOrderCreated))
		bus.Listen(EventOrderUpdated, "ws", n.broadcast(EventOrderUpdated))
	}
	if n.Mailer != nil && n.AdminEmail != "" {
		bus.Listen(EventOrderCreated, "mail", n.mailAdmin)
	}
}

func (n Notifier) broadcast(kind string) event.Handler {
	return func(_ context.Context, payload interface{}) error {
		return n.Hub.BroadcastJSON(kind, payload)
	}
}

func (n Notifier) mailAdmin(ctx context.Context, payload interface{}) error {
	o, ok := payload.(models.Order)
	if !ok {
		return fmt.Errorf("services: mail listener got %T", payload)
	}
	msg := mail.To(n.AdminEmail).
		Subject(fmt.Sprintf("New order #%d from %s (%.2f)", o.ID, o.CustomerName, o.Total)).
		Template(orderMailTmpl, o)
	return n.Mailer.Send(ctx, msg)
}
