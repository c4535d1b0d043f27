package main

import (
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
)

func setupDatabase() error {
	if config.Development() {
		if _, err := datastore.UseInMemory(); err != nil {
			return err
		}
		return datastore.GetStore().AutoMigrate()
	}

	if err := datastore.GetStore().Open(); err != nil {
		return err
	}
	return datastore.GetStore().AutoMigrate()
}
