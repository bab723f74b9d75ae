// Package echo is the sample service shipped with the skeleton.
//
// It answers three topic patterns, relative to the configured base topic:
//
//	echoservice/echo       replies with the request payload
//	echoservice/version    replies with the service name and version
//	echoservice/echon/#    same as version
//
// Replies go to the reply topic from the "echoservice" configuration
// section (default "echoservice/reply"). When the section configures a
// database, every handled message is appended to a SQLite journal; when it
// enables InfluxDB, a point is written per message.
//
// Usage:
//
//	echoSvc := echo.New("echoservice", version, logger)
//	svc := service.New(service.Options{Hooks: echoSvc, ...})
//	if err := echoSvc.Attach(svc); err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package echo
