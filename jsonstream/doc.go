// Package jsonstream decodes HTTP response bodies as lazy sequences of JSON values.
//
//	for item, err := range jsonstream.Get[Item](ctx, client, "items") {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(item.Name)
//	}
package jsonstream
