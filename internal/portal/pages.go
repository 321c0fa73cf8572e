package portal

import (
	"bytes"
	"html/template"

	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

const pageHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
{{- if .Refresh}}
<meta http-equiv="refresh" content="{{.Refresh}};url={{.DeviceURL}}">
{{- end}}
<style>
body{font-family:verdana,sans-serif;background:SteelBlue;color:GhostWhite;margin:1em}
input[type=submit],button{font-size:1.1em;margin:.3em 0;padding:.4em 1em}
.muted{color:Gainsboro}
.fail{color:DarkOrange}
</style>
</head>
<body>
`

const pageFoot = `</body>
</html>
`

var pages = template.Must(template.New("head").Parse(pageHead))

func init() {
	template.Must(pages.New("foot").Parse(pageFoot))
	template.Must(pages.New("landing").Parse(`{{template "head" .}}<h1>{{.DeviceName}}</h1>
<p>This device needs a Wi-Fi network.</p>
<p>Please select your network:</p>
<p><a href="/list_networks">Network Selection</a></p>
{{template "foot" .}}`))

	template.Must(pages.New("networks").Parse(`{{template "head" .}}<h2>Select your network:</h2>
{{- range .Networks}}
<form action="/enterPassword?network={{.Name}}" method="post">
<input type="submit" value="{{.Number}}. {{.Name}}"/>
</form>
{{- else}}
<p class="muted">No networks found.</p>
{{- end}}
{{template "foot" .}}`))

	template.Must(pages.New("password").Parse(`{{template "head" .}}<h2>Network: {{.Network}}</h2>
<form id="connectForm" action="/connect" method="post" onsubmit="submitForm(event)">
<input type="hidden" name="network" value="{{.Network}}"/>
Password: <input id="passwordField" type="password" name="password"/><br/>
Show password: <input id="showPasswordCheckbox" type="checkbox" onchange="togglePasswordVisibility()"/><br/>
<input type="submit" value="Connect"/>
</form>
<script>
var network = {{.Network}};
function togglePasswordVisibility() {
  var field = document.getElementById('passwordField');
  field.type = document.getElementById('showPasswordCheckbox').checked ? 'text' : 'password';
}
function submitForm(event) {
  event.preventDefault();
  var password = document.getElementById('passwordField').value;
  var xhr = new XMLHttpRequest();
  xhr.open('POST', '/connect', true);
  xhr.setRequestHeader('Content-Type', 'application/x-www-form-urlencoded');
  xhr.onreadystatechange = function() {
    if (xhr.readyState === 4 && xhr.status === 200) {
      document.open();
      document.write(xhr.responseText);
      document.close();
    }
  };
  xhr.send('network=' + encodeURIComponent(network) + '&password=' + encodeURIComponent(password));
}
</script>
{{template "foot" .}}`))

	template.Must(pages.New("result").Parse(`{{template "head" .}}
{{- if .Connected}}
<h2>Network Connection Successful</h2>
<p>{{.DeviceName}} is joining {{.Network}}. You can close this page.</p>
{{- else if .Rejected}}
<h2 class="fail">Invalid network name or password</h2>
<p>Names and passwords are limited to 31 characters.</p>
<button onclick="location.href='/list_networks'">Select network and try again</button>
{{- else}}
<h2 class="fail">Network Connection Failed</h2>
<p>Failed to connect to network: {{.Network}}</p>
<button onclick="location.href='/list_networks'">Select network and try again</button>
{{- end}}
{{template "foot" .}}`))

	template.Must(pages.New("probe").Parse(`<meta http-equiv="refresh" content="0;url={{.DeviceURL}}">
`))

	template.Must(pages.New("legacy").Parse(`{{template "head" .}}<h2>{{.DeviceName}}</h2>
<p class="muted">
{{- range .Networks}}{{.Index}}. [{{.Name}}]<br>{{end -}}
</p>
<p class="muted">Enter Wifi-Ssid (Number or name) and Pass:</p>
<form method="POST" action="checkpass.php">
<input type="text" name="XXID"><br>
<input type="password" name="XXPS"><br>
<input type="submit" name="action" value="Submit">
</form>
{{template "foot" .}}`))

	template.Must(pages.New("thanks").Parse(`{{template "head" .}}<h2>{{.DeviceName}}</h2>
<p class="fail"><big>Thank You.....</big></p>
{{template "foot" .}}`))
}

type networkEntry struct {
	Index  int
	Number int
	Name   string
}

type pageData struct {
	Title      string
	DeviceName string
	DeviceURL  string
	Refresh    int
	Networks   []networkEntry
	Network    string
	Connected  bool
	Rejected   bool
}

func (s *Session) pageData(title string) pageData {
	d := pageData{
		Title:      title,
		DeviceName: s.DeviceName,
		DeviceURL:  s.DeviceURL(),
	}
	for i, name := range s.Networks.Names() {
		d.Networks = append(d.Networks, networkEntry{Index: i, Number: i + 1, Name: name})
	}
	return d
}

func render(name string, data pageData) []byte {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("Page render failed", zap.String("page", name), zap.Error(err))
		return []byte("<html><body>" + template.HTMLEscapeString(data.Title) + "</body></html>\n")
	}
	return buf.Bytes()
}
