// services/dispatch-service/internal/notify/email.go

package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/dukens11-create/gud/services/dispatch-service/internal/domain"
)

var assignmentTmpl = template.Must(template.New("assignment").Parse(`<h2>New load assigned: {{.LoadNumber}}</h2>
<p>Hi {{.DriverName}},</p>
<p>You have been assigned load <strong>{{.LoadNumber}}</strong>.</p>
<table>
  <tr><td>Rate</td><td>{{.Rate}}</td></tr>
  <tr><td>Pickup</td><td>{{.PickupAddress}}</td></tr>
  <tr><td>Delivery</td><td>{{.DeliveryAddress}}</td></tr>
</table>
{{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}`))

type assignmentView struct {
	LoadNumber      string
	DriverName      string
	Rate            string
	PickupAddress   string
	DeliveryAddress string
	Notes           string
}

// AssignmentEmail renders the email sent to a driver when a load is assigned to them.
func AssignmentEmail(load domain.Load, driver domain.Driver) (Email, error) {
	view := assignmentView{
		LoadNumber:      load.LoadNumber,
		DriverName:      driver.Name,
		Rate:            FormatCents(load.RateCents),
		PickupAddress:   joinAddress(load.PickupAddress, load.PickupCity),
		DeliveryAddress: joinAddress(load.DeliveryAddress, load.DeliveryCity),
		Notes:           load.Notes,
	}
	var buf bytes.Buffer
	if err := assignmentTmpl.Execute(&buf, view); err != nil {
		return Email{}, fmt.Errorf("failed to render assignment email: %w", err)
	}
	return Email{
		To:      driver.Email,
		Subject: fmt.Sprintf("Load %s assigned to you", load.LoadNumber),
		HTML:    buf.String(),
	}, nil
}

// FormatCents renders an amount in cents as dollars, e.g. 150050 -> "$1500.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func joinAddress(addr, city string) string {
	switch {
	case addr == "":
		return city
	case city == "":
		return addr
	default:
		return addr + ", " + city
	}
}
