package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		msg, errType := cerrors.GetRootCauseAndErrorCode(err)
		log.Errorf("[%s]: %s", errType, msg)
		os.Exit(1)
	}
}
