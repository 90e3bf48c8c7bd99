package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("dashboardctl failed")
	}
}
