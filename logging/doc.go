/*
Package logging implements application log instrumentation and an
Apache-combined-style access log for the gateway pipeline.

Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

    import log "github.com/sirupsen/logrus"

    func doSomething() {
        log.Errorf("nothing to do")
    }

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, and to set a common
prefix for each log entry. Setting the prefix may be a good idea when
the access log is enabled and its output is the same as the one of the
application log, to make it easier to split the output for diagnostics.

Access Log

The access log prints one line per LogAccess call in the Apache combined
log format, extended with the pipeline duration, the matched rule ID and
the action taken. To output entries, use the logging.LogAccess function.
The gateway pipeline calls it for each request that matched a rule, with
the status code written to the client; it does not record the response
size, which is logged as 0.

During initialization, it is possible to redirect the access log output
from the default /dev/stderr to another file, switch it to JSON, or
disable it entirely.
*/
package logging
