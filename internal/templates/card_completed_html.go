package templates

import (
	"bytes"
	"html/template"
)

type CardCompletedEmailData struct {
	StudentName string
	StampCount  int
	AppURL      string
}

const cardCompletedHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8"/>
  <title>Stamp Card Completed</title>
  <style>
    body {
      margin: 0;
      padding: 0;
      font-family: Arial, sans-serif;
      background-color: #f5f5f5;
      color: #333;
    }
    .email-container {
      width: 100%;
      max-width: 600px;
      margin: 0 auto;
      background-color: #ffffff;
    }
    .header {
      background-color: #43a047;
      color: #ffffff;
      padding: 24px;
      text-align: center;
      font-size: 22px;
      font-weight: bold;
    }
    .content {
      padding: 24px;
      line-height: 1.5;
    }
    .highlight {
      color: #43a047;
      font-weight: bold;
    }
    .cta-button {
      display: inline-block;
      padding: 12px 24px;
      background-color: #43a047;
      color: #ffffff;
      text-decoration: none;
      border-radius: 4px;
    }
    .footer {
      padding: 16px;
      font-size: 12px;
      color: #888;
      text-align: center;
    }
  </style>
</head>
<body>
  <table class="email-container" cellpadding="0" cellspacing="0">
    <tr>
      <td>
        <div class="header">Your stamp card is complete!</div>
        <div class="content">
          {{if .StudentName}}
            <p>Hi <span class="highlight">{{.StudentName}}</span>,</p>
          {{else}}
            <p>Hi there,</p>
          {{end}}
          <p>You collected all <span class="highlight">{{.StampCount}}</span> stamps on your card.
             Ask a teacher for a gift code and exchange it in the app.</p>
          {{if .AppURL}}
          <p style="text-align:center">
            <a class="cta-button" href="{{.AppURL}}">Open my collection</a>
          </p>
          {{end}}
        </div>
        <div class="footer">
          <p>A new card has already been started for you.</p>
        </div>
      </td>
    </tr>
  </table>
</body>
</html>
`

var cardCompletedTmpl = template.Must(template.New("card_completed").Parse(cardCompletedHTML))

func RenderCardCompletedHTML(data CardCompletedEmailData) (string, error) {
	var buf bytes.Buffer
	if err := cardCompletedTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
