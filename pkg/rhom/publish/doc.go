// Package publish broadcasts change notices for stored instances.
//
// The Publisher plugin emits a Notice on a Bus after each successful
// save, delete and purge. Channels follow the type's key prefix:
//
//	User:42:save
//	User:42:delete
//	User:purge
//
// so a subscriber can follow one instance, or a whole type, by prefix.
//
//	bus := publish.NewBus(publish.DefaultBusConfig)
//	defer bus.Close()
//	users.MustUse(publish.New(bus))
//	bus.Subscribe(users.Prefix(), func(ctx context.Context, n publish.Notice) error {
//		log.Println(n.Channel)
//		return nil
//	})
package publish
