package bidding

import "github.com/dedis/ledger_auctions/ledger"

// Errors returned by the bidding program. The first five are the ones the
// deployed program has always exposed; their codes must not change.
var (
	ErrInvalidPreviousBidder = ledger.NewError(6000, "InvalidPreviousBidder",
		"previous bidder does not match the highest bidder stored in the item")
	ErrPreviousBidderNotWritable = ledger.NewError(6001, "PreviousBidderNotWritable",
		"previous bidder account must be writable to receive the refund")
	ErrEscrowNotRentExempt = ledger.NewError(6002, "EscrowNotRentExempt",
		"escrow account would hold less than its reserve plus the highest bid")
	ErrInvalidNewAuthority = ledger.NewError(6003, "InvalidNewAuthority",
		"new authority is not the highest bidder")
	ErrInvalidAuctionCreator = ledger.NewError(6004, "InvalidAuctionCreator",
		"auction creator is not the item authority")

	ErrBidTooLow = ledger.NewError(6005, "BidTooLow",
		"bid is below the opening price or the minimum increment")
	ErrAuctionExpired = ledger.NewError(6006, "AuctionExpired",
		"auction has ended")
	ErrAuctionNotExpired = ledger.NewError(6007, "AuctionNotExpired",
		"auction has not ended yet")
	ErrAuctionSettled = ledger.NewError(6008, "AuctionSettled",
		"auction is already settled")
	ErrItemCounterExhausted = ledger.NewError(6009, "ItemCounterExhausted",
		"every item id has been issued")
	ErrNameTooLong = ledger.NewError(6010, "NameTooLong",
		"name is longer than 200 bytes")
	ErrDescriptionTooLong = ledger.NewError(6011, "DescriptionTooLong",
		"description is longer than 600 bytes")
	ErrImageURLTooLong = ledger.NewError(6012, "ImageURLTooLong",
		"image url is longer than 500 bytes")
	ErrInvalidPriceTerms = ledger.NewError(6013, "InvalidPriceTerms",
		"opening price and minimum bid must be at least 1")
	ErrInvalidDuration = ledger.NewError(6014, "InvalidDuration",
		"duration must be positive and end before the clock overflows")
	ErrCounterAddressMismatch = ledger.NewError(6015, "CounterAddressMismatch",
		"account is not the item counter")
	ErrItemAddressMismatch = ledger.NewError(6016, "ItemAddressMismatch",
		"account is not the item with this id")
	ErrEscrowAddressMismatch = ledger.NewError(6017, "EscrowAddressMismatch",
		"account is not the escrow of this item")
	ErrAccountNotInitialized = ledger.NewError(6018, "AccountNotInitialized",
		"account is not initialized by the bidding program")
	ErrArithmeticOverflow = ledger.NewError(6019, "ArithmeticOverflow",
		"arithmetic overflow")
	ErrAuctionCreatorNotWritable = ledger.NewError(6020, "AuctionCreatorNotWritable",
		"auction creator account must be writable to receive the proceeds")
)
