package database

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// Registry is the default bson registry plus a codec storing decimals as
// their exact string form.
func Registry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(decimalType, bsoncodec.ValueEncoderFunc(encodeDecimal))
	reg.RegisterTypeDecoder(decimalType, bsoncodec.ValueDecoderFunc(decodeDecimal))
	return reg
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, v reflect.Value) error {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return bsoncodec.ValueEncoderError{Name: "DecimalEncodeValue", Types: []reflect.Type{decimalType}, Received: v}
	}
	return vw.WriteString(d.String())
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, v reflect.Value) error {
	switch vr.Type() {
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		v.Set(reflect.ValueOf(decimal.Zero))
		return nil
	case bsontype.String:
		s, err := vr.ReadString()
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(d))
		return nil
	default:
		return fmt.Errorf("cannot decode %v into decimal", vr.Type())
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetRegistry(Registry()).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}
