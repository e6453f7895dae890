package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hurlstack/packages/errdef"
	"github.com/abdul-hamid-achik/hurlstack/packages/http"
)

var uploadMethod string

var uploadCmd = &cobra.Command{
	Use:   "upload <url> <file|name=path>...",
	Short: "Upload files as multipart/form-data",
	Long: heredoc.Doc(`
		Upload one or more files to a URL in a single multipart/form-data body.

		Each file part is named after the file's base name unless given as
		name=path. A repeated name replaces the earlier file in place.

		Examples:
		  hurlstack upload https://api.example.com/files report.pdf
		  hurlstack upload https://api.example.com/files avatar=./me.png notes.txt
		  hurlstack upload -X PUT -c id=body:id https://api.example.com/files/7 data.csv
	`),
	Args: cobra.MinimumNArgs(2),
	RunE: uploadCommand,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadMethod, "method", "X", "POST", "Request method")
}

func uploadCommand(cmd *cobra.Command, args []string) error {
	method, err := http.ParseMethod(uploadMethod)
	if err != nil {
		return err
	}

	entries := make([]http.FileEntry, 0, len(args)-1)
	for _, arg := range args[1:] {
		entry, err := parseFileArg(arg)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	req := http.NewMultipartRequest[json.RawMessage](method, args[0]).
		SetTimeout(s.requestTimeout()).
		SetLogger(s.logger)
	for k, v := range s.headers {
		req.SetHeader(k, v)
	}
	for _, e := range entries {
		req.AddFile(e.Name, e.Source)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := s.execute(ctx, req, func(resp *http.Response) ([]byte, error) {
		if !resp.IsJSON() {
			return resp.ReadBody()
		}
		raw, err := req.ParseResponse(resp)
		if err != nil {
			return nil, err
		}
		return raw, nil
	})

	return s.finish(runErr)
}

// parseFileArg reads "path" or "name=path". The file must exist so a typo
// fails before any connection is opened.
func parseFileArg(arg string) (http.FileEntry, error) {
	name, path, ok := strings.Cut(arg, "=")
	if !ok {
		path = arg
		name = filepath.Base(arg)
	}
	if name == "" || path == "" {
		return http.FileEntry{}, errdef.New(errdef.CodeParse, "invalid file argument %q (want path or name=path)", arg)
	}
	info, err := os.Stat(path)
	if err != nil {
		return http.FileEntry{}, errdef.Wrap(errdef.CodeResource, err, "upload file %s", path)
	}
	if info.IsDir() {
		return http.FileEntry{}, errdef.New(errdef.CodeResource, "upload file %s is a directory", path)
	}
	return http.FileEntry{Name: name, Source: http.FilePath(path)}, nil
}
