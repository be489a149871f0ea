package listing

// Routes served under the reserved, hidden prefix. Names starting with "."
// never appear in a listing, so these cannot shadow a shared entry.
const (
	ReservedPrefix = "/.lanshare/"
	LivePath       = ReservedPrefix + "live"
	ThumbPrefix    = ReservedPrefix + "thumb"
)

const listingTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>File Share Directory</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .container { max-width: 800px; margin: 0 auto; }
        .file-list { list-style: none; padding: 0; }
        .file-item {
            padding: 10px;
            border-bottom: 1px solid #eee;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        .file-item:hover { background-color: #f5f5f5; }
        .file-link {
            text-decoration: none;
            color: #2196F3;
        }
        .file-thumb {
            width: 48px;
            height: 48px;
            object-fit: cover;
            margin-right: 10px;
            vertical-align: middle;
        }
        .file-info {
            color: #666;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="container">
        <h2>Files Available for Download</h2>
        <ul class="file-list">
{{- range .Entries}}
            <li class="file-item">
                <a href="{{.Href}}" class="file-link">
{{- if and $.Thumbnails .IsImage}}<img class="file-thumb" src="{{thumbURL .Href}}" alt="" loading="lazy">{{end -}}
{{.Name}}</a>
                <span class="file-info">{{.Info}}</span>
            </li>
{{- end}}
        </ul>
    </div>
{{- if .Live}}
    <script>
    (function() {
        var proto = location.protocol === "https:" ? "wss:" : "ws:";
        var ws = new WebSocket(proto + "//" + location.host + {{.LiveURL}} + "?path=" + encodeURIComponent({{.Path}}));
        ws.onmessage = function(ev) {
            ev.data.split("\n").forEach(function(line) {
                var msg = JSON.parse(line);
                if (msg.type === "listing.changed") {
                    location.reload();
                }
            });
        };
    })();
    </script>
{{- end}}
</body>
</html>
`
