package clients

// Operation names sent as operationName. The development server dispatches on them.
const (
	OpLogin          = "Login"
	OpRegister       = "Register"
	OpCurrentUser    = "GetCurrentUser"
	OpAllListings    = "GetAllProducts"
	OpMyListings     = "GetMyProducts"
	OpListing        = "GetProductById"
	OpCreateListing  = "CreateProduct"
	OpUpdateListing  = "UpdateProduct"
	OpDeleteListing  = "DeleteProduct"
	OpBuyListing     = "BuyProduct"
	OpRentListing    = "RentProduct"
	OpBoughtOrders   = "GetMyBoughtOrders"
	OpSoldOrders     = "GetMySoldProducts"
	OpBorrowedOrders = "GetMyBorrowedProducts"
	OpLentOrders     = "GetMyLentProducts"
)

const listingFields = `
      id
      title
      description
      categories
      price
      rentPrice
      rentUnit
      owner {
        id
        email
      }`

const orderFields = `
      id
      type
      rentStart
      rentEnd
      product {
        id
        title
      }
      buyer {
        id
        email
      }`

var documents = map[string]string{
	OpLogin: `mutation Login($input: LoginInput!) {
  login(input: $input)
}`,
	OpRegister: `mutation Register($input: UserDto!) {
  register(input: $input) {
    id
    email
    firstName
    lastName
    userType
  }
}`,
	OpCurrentUser: `query GetCurrentUser {
  getCurrentUser {
    id
    email
    firstName
    lastName
    userType
    address
    phoneNumber
  }
}`,
	OpAllListings: `query GetAllProducts {
  products {` + listingFields + `
  }
}`,
	OpMyListings: `query GetMyProducts {
  userProducts {` + listingFields + `
  }
}`,
	OpListing: `query GetProductById($productId: ID!) {
  productById(productId: $productId) {` + listingFields + `
  }
}`,
	OpCreateListing: `mutation CreateProduct($input: ProductInput!) {
  createProduct(input: $input) {` + listingFields + `
  }
}`,
	OpUpdateListing: `mutation UpdateProduct($productId: ID!, $input: ProductInput!) {
  updateProduct(productId: $productId, input: $input) {` + listingFields + `
  }
}`,
	OpDeleteListing: `mutation DeleteProduct($productId: ID!) {
  deleteProduct(productId: $productId)
}`,
	OpBuyListing: `mutation BuyProduct($id: ID!) {
  buyProduct(id: $id) {` + orderFields + `
  }
}`,
	OpRentListing: `mutation RentProduct($id: ID!, $from: String!, $to: String!) {
  rentProduct(id: $id, from: $from, to: $to) {` + orderFields + `
  }
}`,
	OpBoughtOrders: `query GetMyBoughtOrders {
  buyerBoughtOrders {` + orderFields + `
  }
}`,
	OpSoldOrders: `query GetMySoldProducts {
  ownerSoldBoughtOrders {` + orderFields + `
  }
}`,
	OpBorrowedOrders: `query GetMyBorrowedProducts {
  buyerRentedOrders {` + orderFields + `
  }
}`,
	OpLentOrders: `query GetMyLentProducts {
  ownerSoldRentedOrders {` + orderFields + `
  }
}`,
}

// ResultField is the top-level data field each operation answers with.
var ResultField = map[string]string{
	OpLogin:          "login",
	OpRegister:       "register",
	OpCurrentUser:    "getCurrentUser",
	OpAllListings:    "products",
	OpMyListings:     "userProducts",
	OpListing:        "productById",
	OpCreateListing:  "createProduct",
	OpUpdateListing:  "updateProduct",
	OpDeleteListing:  "deleteProduct",
	OpBuyListing:     "buyProduct",
	OpRentListing:    "rentProduct",
	OpBoughtOrders:   "buyerBoughtOrders",
	OpSoldOrders:     "ownerSoldBoughtOrders",
	OpBorrowedOrders: "buyerRentedOrders",
	OpLentOrders:     "ownerSoldRentedOrders",
}
