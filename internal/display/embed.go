package display

import (
	"net/url"
	"strings"
)

// ShareURL is the address of the result page for token.
func ShareURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/result?data=" + url.QueryEscape(token)
}

// EmbedURL is the address of the embeddable result page. The victory rule
// is carried along so the embedded view shows the same winners.
func EmbedURL(baseURL, token string, t Threshold) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/result?data=")
	b.WriteString(url.QueryEscape(token))
	if params := t.Params(); len(params) > 0 {
		b.WriteByte('&')
		b.WriteString(params.Encode())
	}
	b.WriteString("&d=embed")
	return b.String()
}

const embedScript = `<script>
  window.addEventListener("message", function (event) {
    if (event.data && event.data.type === "iframeHeight") {
      var iframe = document.getElementById("iframeResize");
      if (iframe) {
        iframe.style.height = event.data.height + "px";
      }
    }
  });
</script>`

// EmbedCode returns the HTML snippet that embeds the result page found at
// embedURL, followed by the script that resizes the frame to its content.
func EmbedCode(embedURL string) string {
	src := embedURL
	if u, err := url.Parse(embedURL); err == nil {
		src = u.String()
	}
	src = strings.ReplaceAll(src, "%7E", "~")
	src = strings.ReplaceAll(src, `"`, "&quot;")

	return `<iframe title="Résultat du scrutin" id="iframeResize" ` +
		`style="border: none; width: 100%; height: 500px" src="` + src + `"></iframe>` +
		"\n" + embedScript
}
