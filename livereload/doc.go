/*

This package serves a web application during development and reloads connected browsers when watched files change.
It can be used as a library or through the `livereload` command.

    import (
        "livereload.io/livereload"
    )

    func main() {
        server, err := livereload.New(&livereload.Config{
            Port: 5500,     // Content and the reload channel share this port unless LivePort is set.
            Root: "public", // Served when no handler is passed to New and Proxy is empty.
        }, nil)
        if err != nil {
            panic(err)
        }

        // Reload right away when any page changes.
        server.Watch("public/*.html", nil, livereload.Immediate)

        // Compile stylesheets first, then tell browsers to reload after a second.
        server.Watch("styles/*.less", livereload.Shell("lessc styles/site.less").WithOutput("public/site.css"), livereload.After(time.Second))

        // Run the callback, never reload.
        server.Watch("pkg:example.com/app", livereload.Func(func() error {
            log.Println("restart needed")
            return nil
        }), livereload.Forever)

        if err := server.Serve(context.Background()); err != nil {
            panic(err)
        }
    }


How does it work?

The watcher polls every file matched by registered patterns (a path, a directory, a doublestar glob, or `pkg:` followed
by a Go import path for the package and every package it imports from the main module) and compares modification time
and size with the previous cycle. The first time a file is seen it is only recorded. Changed files trigger their
entries: tasks run in registration order, then one reload is sent to browsers with the smallest delay among
triggered entries. Entries with `Forever` delay run their task but never reload.

HTML responses get a script tag inserted before `</head>`. The script connects to `/livereload` over websocket,
says hello, and reloads the page (or only stylesheets) when told to. `GET /forcereload` reloads every browser right
away, `GET /livereload/health` reports whether the watcher keeps polling.

With `Notify` set, file system notifications wake the watcher up early. Polling continues regardless, so events
missed by the OS are picked up on the next cycle.

*/
package livereload
