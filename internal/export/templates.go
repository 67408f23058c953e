package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"community/api/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var channelTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006 15:04 MST")
		},
		"imageURL": imageURL,
	}

	templateContent, err := templateFS.ReadFile("templates/channel.html")
	if err != nil {
		channelTemplate = template.Must(template.New("channel").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	channelTemplate = template.Must(template.New("channel").Funcs(funcMap).Parse(string(templateContent)))
}

// imageURL lets inline image payloads through html/template, which would
// otherwise replace every data: URL with a placeholder.
func imageURL(image *string) template.URL {
	if image == nil {
		return ""
	}
	value := strings.TrimSpace(*image)
	if !strings.HasPrefix(value, "data:image/") {
		return ""
	}
	return template.URL(value)
}

type TemplateData struct {
	Category    string
	GeneratedAt time.Time
	Posts       []store.Post
}

func RenderChannelHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := channelTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>#{{.Category}}</title></head>
<body>
  <h1>#{{.Category}}</h1>
  {{range .Posts}}<div class="post"><p>{{.Author}}: {{.Content}}</p>
  {{range .Replies}}<div class="reply">{{.Author}}: {{.Content}}</div>{{end}}</div>{{end}}
</body>
</html>`
