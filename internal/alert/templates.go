package alert

import (
	"bytes"
	"html/template"
)

var lowStockTemplate = template.Must(template.New("low_stock").Parse(`
<h3>Low {{.Side}} Stock Alert</h3>
<p>Item: <b>{{.ItemName}}</b></p>
<p>Brand: <b>{{.Brand}}</b></p>
<p>Current {{.Side}} Stock: <b>{{.Stock}}</b></p>
<p>{{.Side}} Limit: <b>{{.Limit}}</b></p>
<p>Please restock soon.</p>
`))

var negotiationTemplate = template.Must(template.New("negotiation").Parse(`
<h3>Negotiation Request</h3>
<p><b>Name:</b> {{.Customer.Name}}</p>
<p><b>Email:</b> {{.Customer.Email}}</p>
<p><b>Phone:</b> {{if .Customer.Phone}}{{.Customer.Phone}}{{else}}N/A{{end}}</p>
<p><b>Original Total:</b> {{.OriginalTotal}}</p>
<p><b>Requested Total:</b> {{.NegotiatedTotal}}</p>
<p><b>Items:</b> {{range $i, $line := .Items}}{{if $i}}, {{end}}{{$line.Name}} ({{$line.Brand}}) x {{$line.Quantity}}{{end}}</p>
<p>Reply to this email to contact the customer.</p>
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
